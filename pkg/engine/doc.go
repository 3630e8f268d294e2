// Package engine runs render sessions: load a source, select a value by
// attribute path, print it.
//
// # Overview
//
// A Session owns one evaluator and the document loaded into it. Every
// operation goes through three phases, each with its own error class:
//
//  1. Load - detect the format and build the value graph (ErrorClassLoad)
//  2. Select - follow an attribute path such as packages.hello, forcing
//     each intermediate value (ErrorClassSelect)
//  3. Render - print the selected value with printer.PrintValue
//     (ErrorClassRender)
//
// Evaluation failures inside the printed value are not errors of the
// session: they show up inline in the output and in the render stats.
//
// # Selection Paths
//
// Components are separated by dots. A numeric component indexes a list,
// and double quotes keep dots inside a name:
//
//	services.web.ports.0
//	packages."hello.world".out
//
// # Telemetry
//
// Each session gets a uuid that is attached to its log lines and spans.
// Loads and renders are timed and recorded in Prometheus metrics; a
// cancelled render is recorded with status "canceled".
//
// # Derivations
//
// When Config.Registry is set, each derivation that gets instantiated has
// its .drv path and output path registered, the output with the .drv as
// its deriver.
//
// # Usage Example
//
//	s := engine.NewSession(engine.Config{Telemetry: tel, Registry: db})
//	defer s.Close()
//
//	if _, err := s.Load(ctx, "default.star"); err != nil {
//	    return err
//	}
//	opts, err := s.SourceOptions(printer.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	res, err := s.Render(ctx, os.Stdout, engine.RenderRequest{
//	    AttrPath: "services.web",
//	    Options:  opts,
//	})
//
// # Thread Safety
//
// Session methods are safe for concurrent use and run one at a time.
package engine
