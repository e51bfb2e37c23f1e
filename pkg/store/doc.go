// Package store defines what a piece of shared state must support and
// provides the three ready-made strategies for producing and updating it.
//
// A store definition is a package-level value that identifies one shared
// store. The registry keeps exactly one value per definition:
//
//	type Counter struct{ Count int }
//
//	var CounterStore = store.NewBasic(func() Counter { return Counter{} })
//
// # Strategies
//
// Basic notifies subscribers on every reduce:
//
//	var Form = store.NewBasic(func() Form { return Form{} })
//
// Reducer folds action values into the next state. The state type defines
// the fold:
//
//	func (t Todos) Reduce(a TodoAction) Todos { ... }
//
//	var TodoStore = store.NewReducer[Todos, TodoAction](nil)
//
// Persistent loads its initial value from a storage area and writes every
// change back. A missing or corrupt value falls back to the default:
//
//	var Settings = store.NewPersistent("settings", storage.Durable,
//	    func() Settings { return Settings{Theme: "light"} },
//	    store.WithCodec(store.YAML),
//	)
//
// # Custom stores
//
// Any comparable type implementing Store is a definition. ChangeDetector,
// MutationHook and Named are optional and discovered with type assertions.
package store
