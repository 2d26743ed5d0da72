// Package useragent provides the UserAgent extension class, a parsed view
// of a User-Agent string:
//
//	var ua = new Components.classes.UserAgent(request.userAgent);
//	ua.family(); ua.major(); ua.os(); ua.device();
package useragent

import (
	"errors"
	"sync"

	"github.com/cryguy/jshandler/ext"
	"github.com/ua-parser/uap-go/uaparser"
)

// ClassName is the name scripts see under Components.classes.
const ClassName = "UserAgent"

// Extension is registered as builtin:useragent.
var Extension = ext.Func(GetName, CreateObject)

func init() { ext.Register("useragent", Extension) }

var (
	parserOnce sync.Once
	parser     *uaparser.Parser
)

// The regex set is large; compile it on first use only.
func sharedParser() *uaparser.Parser {
	parserOnce.Do(func() { parser = uaparser.NewFromSaved() })
	return parser
}

func GetName() string { return ClassName }

func CreateObject() *ext.ClassDescriptor {
	return &ext.ClassDescriptor{
		Constructor: func(args []any) (any, error) {
			if len(args) == 0 {
				return nil, errors.New("UserAgent needs a user agent string")
			}
			s, ok := args[0].(string)
			if !ok {
				return nil, errors.New("user agent must be a string")
			}
			return sharedParser().Parse(s), nil
		},
		Methods: map[string]ext.Method{
			"family": field(func(c *uaparser.Client) string { return c.UserAgent.Family }),
			"major":  field(func(c *uaparser.Client) string { return c.UserAgent.Major }),
			"minor":  field(func(c *uaparser.Client) string { return c.UserAgent.Minor }),
			"os":     field(func(c *uaparser.Client) string { return c.Os.Family }),
			"device": field(func(c *uaparser.Client) string { return c.Device.Family }),
		},
	}
}

func field(get func(*uaparser.Client) string) ext.Method {
	return func(self any, _ []any) (any, error) {
		return get(self.(*uaparser.Client)), nil
	}
}
