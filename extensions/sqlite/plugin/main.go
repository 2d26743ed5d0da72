// Command plugin builds the Database class as a loadable extension:
//
//	go build -buildmode=plugin -o sqlite.so ./extensions/sqlite/plugin
package main

import (
	"github.com/cryguy/jshandler/ext"
	"github.com/cryguy/jshandler/extensions/sqlite"
)

func GetName() string { return sqlite.GetName() }

func CreateObject() *ext.ClassDescriptor { return sqlite.CreateObject() }

func main() {}
