package classical

import "fmt"

// Registry holds one model per family, in simplicity order.
type Registry struct {
	models []Model
	byID   map[Family]Model
}

// NewRegistry builds every family from the same settings.
func NewRegistry(s Settings) *Registry {
	models := []Model{
		NewShift(s),
		NewRotN(s),
		NewAffine(s),
		NewVigenere(s),
		NewSubstitution(s),
		NewReverse(s),
		NewRailFence(s),
		NewA1Z26(s),
		NewMorse(s),
		NewBacon(s),
	}
	r := &Registry{models: models, byID: make(map[Family]Model, len(models))}
	for _, m := range models {
		r.byID[m.Family()] = m
	}
	return r
}

// Models returns the models in simplicity order.
func (r *Registry) Models() []Model {
	return r.models
}

// Lookup returns the model of family f.
func (r *Registry) Lookup(f Family) (Model, error) {
	m, ok := r.byID[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFamily, f)
	}
	return m, nil
}

// LookupName resolves a family name and returns its model.
func (r *Registry) LookupName(name string) (Model, error) {
	f, err := ParseFamily(name)
	if err != nil {
		return nil, err
	}
	return r.Lookup(f)
}
