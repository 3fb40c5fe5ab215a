// Package crabzilla embeds a JavaScript engine in Go programs and bridges
// host functions into the guest.
//
// # Overview
//
// Guest modules run with zero default capabilities. Every host function the
// guest can call is registered up front, under a global scope object, before
// any guest code runs.
//
// # Basic Usage
//
//	rt, _ := bridge.New(
//	    bridge.WithScopedFunc("Stdout", "sayHello", func(ctx context.Context, args []value.Value) (value.Value, error) {
//	        name, _ := args[0].AsString()
//	        fmt.Println("Hello, " + name)
//	        return value.Undefined(), nil
//	    }),
//	)
//	defer rt.Close()
//
//	// module.js: Stdout.sayHello("Ada");
//	err := rt.LoadModule(ctx, "module.js")
//
// # Enabling Capabilities
//
//	// Key-value store under the KV scope
//	rt, _ := bridge.New(bridge.WithKV(hostfunc.NewKVStore()))
//
//	// Filesystem access under the FS scope
//	rt, _ := bridge.New(bridge.WithMounts([]hostfunc.Mount{
//	    {VirtualPath: "/data", HostPath: "./input", Mode: hostfunc.MountReadOnly},
//	}))
//
//	// HTTP access under the HTTP scope
//	rt, _ := bridge.New(bridge.WithAllowedHosts([]string{"api.example.com"}))
//
// See the [bridge], [hostfunc], [value], and [engine] packages for detailed
// API documentation.
package crabzilla
