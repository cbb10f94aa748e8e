package main

import (
	"oss.terrastruct.com/jshost/jshostcli"
	"oss.terrastruct.com/jshost/lib/xmain"
)

func main() {
	xmain.Main(jshostcli.Run)
}
