// Package config loads configuration sources into value graphs and reads
// print settings.
//
// # Overview
//
// Two source languages are supported. Each loader allocates the loaded
// values in an evaluator's arena and returns a Document whose Root is an
// attribute set.
//
// # Components
//
// StarlarkLoader: executes a Starlark script with timeout enforcement and
// converts its public globals. Dicts and structs become attribute sets,
// lists and tuples become lists, and functions keep their name and
// definition position. Two extra builtins are predeclared:
//
//	# deferred until forced; fail() inside is rendered inline
//	version = lazy(lambda: fail("not released"))
//
//	hello = derivation(name = "hello", builder = "/bin/sh")
//
// A script may also assign print_options, a dict with the same keys as a
// profile's print section.
//
// CUELoader: compiles a CUE file or a package directory. Fields are
// converted on demand, so a non-concrete field such as
//
//	port: int
//
// prints as «thunk» until forced and as an inline error afterwards.
//
// Profile: YAML print settings, validated with validator tags:
//
//	print:
//	  force: true
//	  max_depth: 3
//	  max_string_length: 80
//	attr: services.web
//
// # Usage Example
//
//	loader, err := config.NewLoader(config.FormatStarlark, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	doc, err := loader.Load(ctx, ev, "default.star")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts, err := config.DecodeOptions(doc.PrintOptions, printer.DefaultOptions())
//
// # Security
//
// Starlark execution is sandboxed:
//   - No filesystem access
//   - No network access
//   - Timeout enforcement for the top level (default 30 seconds)
//   - Calls made while rendering stop when the render context is cancelled
//   - Print statements go to the logger
//
// # Thread Safety
//
// Loaders may be shared. The values they produce belong to one evaluator
// and must not be forced concurrently.
package config
