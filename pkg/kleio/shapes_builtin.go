package kleio

// registerBuiltinShapes declares the source-oriented vocabulary: a kleio
// document holds sources, sources hold acts, acts hold the people, objects
// and abstractions they mention, and any of those may carry attributes and
// relations.
func registerBuiltinShapes(r *Registry) {
	must := func(_ *Shape, err error) {
		if err != nil {
			panic(err)
		}
	}

	must(r.Extend(BaseShape, "kleio",
		Position("structure"),
		Guaranteed(),
		Optional("prefix", "obs", "translations", "translator"),
		Part("source"),
	))
	must(r.Extend(BaseShape, "source",
		Position("id"),
		Guaranteed("id"),
		Optional("type", "date", "year", "loc", "ref", "kleiofile", "replace", "obs"),
		Part("act", "attr", "rel"),
		Prefix("src"),
	))
	must(r.Extend(BaseShape, "act",
		Position("id", "type", "date"),
		Guaranteed("id", "type", "date"),
		Optional("day", "month", "year", "loc", "ref", "obs"),
		Part("person", "object", "abstraction", "attr", "rel"),
	))
	must(r.Extend(BaseShape, "abstraction",
		Position("name", "type", "id"),
		Guaranteed("name"),
		Optional("obs", "same_as", "xsame_as"),
		Part("attr", "rel"),
		Prefix("abs"),
	))
	must(r.Extend("abstraction", "person",
		Position("name", "sex", "id"),
		Guaranteed("name", "sex"),
		Prefix("per"),
	))
	must(r.Extend("abstraction", "object",
		Position("name", "type", "id"),
		Guaranteed("name"),
		Prefix("obj"),
	))
	must(r.Extend(BaseShape, "attr",
		Position("type", "value", "date"),
		Guaranteed("type", "value"),
		Optional("id", "obs", "entity"),
		Part(),
		Prefix("att"),
		BeforeInclude(attributeHook),
	))
	must(r.Extend(BaseShape, "rel",
		Position("type", "value", "destname", "destination", "date"),
		Guaranteed("type", "value", "destname", "destination"),
		Optional("id", "obs", "origin"),
		Part(),
		Prefix("rel"),
		BeforeInclude(relationHook),
	))
}
