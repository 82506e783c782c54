/*
Package dsl provides a fluent builder for declaring flows in Go code.

It is an alternative to YAML, JSON or Markdown flow files, handy for tests and
for flows generated at runtime:

	flow, err := dsl.New("refund").
		Add("start").Start().Go("hi").
		Add("hi").Message("Hi").Go("ask").
		Add("ask").Contains("refund").Yes("ok").No("end").
		Add("ok").Message("Processing refund").Go("end").
		Add("end").End().
		Build()

The result can be registered in a memory.Registry and served by the engine.
*/
package dsl
