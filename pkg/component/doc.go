// Package component connects dux stores to a message-driven UI loop.
//
// Loop is a minimal host: messages sent from any goroutine are processed in
// order on the goroutine running Run, and the view is rendered again after
// any message whose Update returned true. Store notifications never render
// directly; they become messages.
//
// WithDispatch wraps an Inner component so it owns a Dispatch for one store.
// State changes arrive as messages built by the wrap function, the adapter
// keeps the latest snapshot and hands it to Inner.View. Every other message
// goes to Inner.Update unchanged.
//
//	type msg struct{ state *Count; click bool }
//
//	loop := component.NewLoop[msg]()
//	app := component.NewWithDispatch(loop, reg, countStore,
//	    func(d *dispatch.Dispatch[Count]) component.Inner[Count, msg] { return &counterView{d: d} },
//	    func(s *Count) msg { return msg{state: s} },
//	    func(m msg) (*Count, bool) { return m.state, m.state != nil },
//	)
//	defer app.Close()
//
//	err := loop.Run(ctx, app, func(view string) { fmt.Println(view) })
package component
