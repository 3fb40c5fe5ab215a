// Package hostfunc defines host functions callable from guest JavaScript.
//
// Host functions are Go functions exported into the guest global scope under
// stable names, optionally grouped under a scope object:
//
//	entries := []hostfunc.Entry{
//	    {Scope: "Stdout", Name: "sayHello", Fn: sayHello},
//	    {Name: "now", Fn: now},
//	}
//	registry, err := hostfunc.NewRegistry(entries...)
//
// In the guest, these appear as Stdout.sayHello(...) and now(...).
//
// # Registry
//
// A [Registry] is built once, at runtime construction, from a declarative
// entry list; registering two functions under the same qualified name fails
// there and then. The registry is immutable afterwards.
//
// # Built-in bundles
//
// Guest code has no implicit access to host resources. The package ships
// opt-in capability bundles that follow the principle of least privilege:
//
//   - [KVStore]: an in-memory key-value store with entry and size limits.
//   - [FS]: mount-based filesystem access with read-only, read-write, and
//     create permission levels.
//   - [HTTP]: outbound requests restricted to an explicit host allow-list.
//
// Each bundle exposes its operations as an Entry slice ready to hand to
// NewRegistry. Side effects performed by custom host functions are the host
// author's responsibility and are not sandboxed.
package hostfunc
