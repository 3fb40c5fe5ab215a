package quickjs

import (
	"fmt"
	"strings"

	"github.com/andyherbert/crabzilla/hostfunc"
)

// buildPrelude generates the JavaScript injected ahead of every guest
// module. It defines one object per scope and one shim per registered
// function; each shim frames its arguments onto stderr and blocks on stdin
// for the host's response. Registry names are validated ASCII, so %q
// produces valid JavaScript string literals.
func buildPrelude(reg *hostfunc.Registry) string {
	var b strings.Builder

	b.WriteString(`"use strict";(function(g){` + "\n")
	b.WriteString(`var hostcall=function(fn,args){` +
		`std.err.puts("\x00CRAB:"+JSON.stringify({fn:fn,args:args})+"\x00");` +
		`std.err.flush();` +
		`var line=std.in.getline();` +
		`if(line===null){throw new Error("host channel closed");}` +
		`var resp=JSON.parse(line);` +
		`if(resp.error!==undefined){throw new Error(resp.error);}` +
		`if(resp.und){return undefined;}` +
		`return resp.data;};` + "\n")

	if reg != nil {
		for _, scope := range reg.Scopes() {
			fmt.Fprintf(&b, "g[%q]={};\n", scope)
		}
		for _, ent := range reg.Entries() {
			target := fmt.Sprintf("g[%q]", ent.Name)
			if ent.Scope != "" {
				target = fmt.Sprintf("g[%q][%q]", ent.Scope, ent.Name)
			}
			fmt.Fprintf(&b, "%s=function(){return hostcall(%q,Array.prototype.slice.call(arguments));};\n",
				target, ent.Qualified())
		}
	}

	b.WriteString("})(globalThis);\n")
	return b.String()
}
