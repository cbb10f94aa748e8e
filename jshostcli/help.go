package jshostcli

import (
	"fmt"

	"oss.terrastruct.com/jshost/lib/xmain"
)

func help(ms *xmain.State) {
	fmt.Fprintf(ms.Stdout, `Usage:
  %[1]s [--engine=v8] [--debug] [file.js]

%[1]s runs file.js (default src/code.js) and prints the state and result of the
promise the script evaluates to.
Use - to have %[1]s read from stdin.

Scripts may call:
  console2.log(value)       prints "console.log: <value>"
  setTimeout(fn, ms)        blocks for ms milliseconds; fn is not called

Flags:
%[2]s

--concurrency sizes the engine platform. v8 runs single threaded when it is 1
and uses its own pool otherwise; goja always runs on the calling goroutine.

Subcommands:
  %[1]s engines - Lists available script engines
  %[1]s version - Prints the version
`, ms.Name, ms.Opts.Help())
}
