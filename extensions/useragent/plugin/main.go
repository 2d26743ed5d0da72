// Command plugin builds the UserAgent class as a loadable extension:
//
//	go build -buildmode=plugin -o useragent.so ./extensions/useragent/plugin
package main

import (
	"github.com/cryguy/jshandler/ext"
	"github.com/cryguy/jshandler/extensions/useragent"
)

func GetName() string { return useragent.GetName() }

func CreateObject() *ext.ClassDescriptor { return useragent.CreateObject() }

func main() {}
