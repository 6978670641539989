package kleio

// RegisterPortuguese adds the Portuguese transcription vocabulary on top of
// the builtin shapes. Local slot names are synonyms of the builtin element
// types, so a fonte stores like a source and an acto like an act.
func RegisterPortuguese(r *Registry) error {
	decls := []struct {
		parent string
		name   string
		opts   []ShapeOption
	}{
		{"source", "fonte", []ShapeOption{
			Synonyms(map[string]string{"tipo": "type", "data": "date", "ano": "year", "substitui": "replace"}),
		}},
		{"act", "acto", []ShapeOption{
			Position("id", "tipo", "data"),
			Guaranteed("id", "tipo", "data"),
			Optional("dia", "mes", "ano", "loc", "ref", "obs"),
			Synonyms(map[string]string{"tipo": "type", "data": "date", "dia": "day", "mes": "month", "ano": "year"}),
		}},
		{"person", "n", []ShapeOption{
			Position("nome", "sexo", "id"),
			Guaranteed("nome", "sexo"),
			Optional("obs", "mesmo_que", "xmesmo_que"),
			Synonyms(map[string]string{"nome": "name", "sexo": "sex", "mesmo_que": "same_as", "xmesmo_que": "xsame_as"}),
		}},
		{"n", "pai", []ShapeOption{
			Position("nome", "id"),
			Guaranteed("nome"),
			Prefix("pai"),
		}},
		{"n", "mae", []ShapeOption{
			Position("nome", "id"),
			Guaranteed("nome"),
			Prefix("mae"),
		}},
		{"attr", "ls", []ShapeOption{
			Position("tipo", "valor", "data"),
			Guaranteed("tipo", "valor"),
			Synonyms(map[string]string{"tipo": "type", "valor": "value", "data": "date"}),
		}},
		{"attr", "atr", []ShapeOption{
			Position("tipo", "valor", "data"),
			Guaranteed("tipo", "valor"),
			Synonyms(map[string]string{"tipo": "type", "valor": "value", "data": "date"}),
		}},
	}
	for _, d := range decls {
		if _, err := r.Extend(d.parent, d.name, d.opts...); err != nil {
			return err
		}
	}
	return nil
}
