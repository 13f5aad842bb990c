package fsdp

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ParamAlias is another registration of a shared parameter: the same parameter, registered under ParamName in
// Module.
type ParamAlias struct {
	Module    Module
	ParamName string
}

func (a ParamAlias) String() string {
	return fmt.Sprintf("%s.%s", a.Module.Name(), a.ParamName)
}

// ParamLocation is where a parameter is registered in the module tree: the primary (owning) module and name,
// plus the aliases of a parameter shared with other modules (e.g. tied embeddings).
//
// When FSDP replaces the parameter (by its shard view, or back by the full tensor), it must do it in every
// location, which is what Swap does.
type ParamLocation struct {
	Module    Module
	ParamName string

	// Shared lists the other registrations of the same parameter. Empty if the parameter isn't shared.
	Shared []ParamAlias
}

// NewParamLocation returns the location of the parameter name in module m, with the given aliases.
//
// It fails if m doesn't hold the parameter.
func NewParamLocation(m Module, name string, aliases ...ParamAlias) (*ParamLocation, error) {
	loc := &ParamLocation{Module: m, ParamName: name}
	for _, alias := range aliases {
		if err := loc.AddAlias(alias.Module, alias.ParamName); err != nil {
			return nil, err
		}
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return loc, nil
}

// AddAlias registers that the parameter is also held by module m under name.
func (loc *ParamLocation) AddAlias(m Module, name string) error {
	if m == nil || name == "" {
		return errors.Errorf("invalid alias (%v, %q) for %s", m, name, loc)
	}
	if m == loc.Module && name == loc.ParamName {
		return errors.Errorf("alias %s.%s is the primary location itself", m.Name(), name)
	}
	loc.Shared = append(loc.Shared, ParamAlias{Module: m, ParamName: name})
	return nil
}

// Validate checks that the primary module holds the parameter.
func (loc *ParamLocation) Validate() error {
	if loc.Module == nil {
		return errors.Errorf("parameter %q has no module", loc.ParamName)
	}
	if _, found := loc.Module.Parameter(loc.ParamName); !found {
		return errors.Errorf("module %q has no parameter %q", loc.Module.Name(), loc.ParamName)
	}
	return nil
}

// Get returns the parameter from the primary location.
func (loc *ParamLocation) Get() (Parameter, error) {
	p, found := loc.Module.Parameter(loc.ParamName)
	if !found {
		return nil, errors.Errorf("module %q has no parameter %q", loc.Module.Name(), loc.ParamName)
	}
	return p, nil
}

// Swap replaces the parameter by p, in the primary location and then in every alias.
//
// Every location must already hold a parameter, otherwise nothing is swapped. If setting one location fails,
// the locations already swapped get their previous parameter back before the error is returned.
func (loc *ParamLocation) Swap(p Parameter) error {
	if err := loc.Validate(); err != nil {
		return errors.WithMessage(err, "swapping")
	}
	targets := append([]ParamAlias{{Module: loc.Module, ParamName: loc.ParamName}}, loc.Shared...)
	previous := make([]Parameter, len(targets))
	for i, target := range targets {
		prev, found := target.Module.Parameter(target.ParamName)
		if !found {
			return errors.Errorf("swapping %s: alias %s holds no parameter", loc, target)
		}
		previous[i] = prev
	}
	for i, target := range targets {
		if err := target.Module.SetParameter(target.ParamName, p); err != nil {
			for j := i - 1; j >= 0; j-- {
				if restoreErr := targets[j].Module.SetParameter(targets[j].ParamName, previous[j]); restoreErr != nil {
					err = errors.WithMessagef(err, "restoring %s failed (%v)", targets[j], restoreErr)
				}
			}
			return errors.WithMessagef(err, "swapping %s of %s", target, loc)
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (loc *ParamLocation) String() string {
	moduleName := "<nil>"
	if loc.Module != nil {
		moduleName = loc.Module.Name()
	}
	if len(loc.Shared) == 0 {
		return fmt.Sprintf("%s.%s", moduleName, loc.ParamName)
	}
	aliases := make([]string, len(loc.Shared))
	for i, alias := range loc.Shared {
		aliases[i] = alias.String()
	}
	return fmt.Sprintf("%s.%s (shared with %s)", moduleName, loc.ParamName, strings.Join(aliases, ", "))
}
