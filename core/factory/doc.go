// Package factory provides a small generic registry used to instantiate
// pluggable modules, such as metrics sinks or history stores, from
// configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[solvelog.Store]()
//	reg.Register("jsonl", func(conf map[string]any) (solvelog.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return solvelog.NewJSONLStore(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "history.jsonl"}})
package factory
