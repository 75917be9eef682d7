package agata

// Report is the dependency map of a broker: the resolved closure of every
// service and the direct dependencies and dependents of every unit.
type Report struct {
	Services   map[string]ServiceReport   `yaml:"services"   json:"services"`
	Singletons map[string]SingletonReport `yaml:"singletons" json:"singletons"`
	Actions    map[string]ActionReport    `yaml:"actions"    json:"actions"`
	Plugins    map[string]PluginReport    `yaml:"plugins"    json:"plugins"`
}

// ServiceReport lists the units a service starts, in start order.
type ServiceReport struct {
	Singletons   []string `yaml:"singletons"   json:"singletons"`
	Actions      []string `yaml:"actions"      json:"actions"`
	LocalActions []string `yaml:"localActions" json:"localActions"`
	Plugins      []string `yaml:"plugins"      json:"plugins"`
}

type SingletonReport struct {
	Dependencies struct {
		Singletons []string `yaml:"singletons" json:"singletons"`
	} `yaml:"dependencies" json:"dependencies"`
	Dependents struct {
		Actions    []string `yaml:"actions"    json:"actions"`
		Singletons []string `yaml:"singletons" json:"singletons"`
		Plugins    []string `yaml:"plugins"    json:"plugins"`
		Services   []string `yaml:"services"   json:"services"`
	} `yaml:"dependents" json:"dependents"`
}

type ActionReport struct {
	Dependencies struct {
		Singletons []string          `yaml:"singletons" json:"singletons"`
		Actions    []string          `yaml:"actions"    json:"actions"`
		Plugins    map[string]Params `yaml:"plugins"    json:"plugins"`
	} `yaml:"dependencies" json:"dependencies"`
	Dependents struct {
		Actions  []string `yaml:"actions"  json:"actions"`
		Services []string `yaml:"services" json:"services"`
	} `yaml:"dependents" json:"dependents"`
}

type PluginReport struct {
	Dependencies struct {
		Singletons []string `yaml:"singletons" json:"singletons"`
	} `yaml:"dependencies" json:"dependencies"`
	Dependents struct {
		Actions []string `yaml:"actions" json:"actions"`
	} `yaml:"dependents" json:"dependents"`
}

// Dependencies loads every service and returns the dependency report.
// Loading is the only state it changes.
func (b *Broker) Dependencies() (*Report, error) {
	services := sortedKeys(b.services)

	for _, name := range services {
		if err := b.loadService(name, b.services[name]); err != nil {
			return nil, err
		}
	}

	r := &Report{
		Services:   make(map[string]ServiceReport, len(b.services)),
		Singletons: make(map[string]SingletonReport, len(b.singletons)),
		Actions:    make(map[string]ActionReport, len(b.actions)),
		Plugins:    make(map[string]PluginReport, len(b.plugins)),
	}

	for _, name := range services {
		deps := b.services[name].deps()
		r.Services[name] = ServiceReport{
			Singletons:   list(deps.Singletons),
			Actions:      list(deps.Actions),
			LocalActions: list(deps.LocalActions),
			Plugins:      list(deps.Plugins),
		}
	}

	singletons := make(map[string]*SingletonReport, len(b.singletons))
	for name, s := range b.singletons {
		sr := &SingletonReport{}
		sr.Dependencies.Singletons = list(s.singletons)
		sr.Dependents.Actions = []string{}
		sr.Dependents.Singletons = []string{}
		sr.Dependents.Plugins = []string{}
		sr.Dependents.Services = []string{}
		singletons[name] = sr
	}

	actions := make(map[string]*ActionReport, len(b.actions))
	for name, a := range b.actions {
		ar := &ActionReport{}
		ar.Dependencies.Singletons = list(a.singletons)
		ar.Dependencies.Actions = list(a.actions)
		ar.Dependencies.Plugins = a.AllPluginParams()
		ar.Dependents.Actions = []string{}
		ar.Dependents.Services = []string{}
		actions[name] = ar
	}

	plugins := make(map[string]*PluginReport, len(b.plugins))
	for name, p := range b.plugins {
		pr := &PluginReport{}
		pr.Dependencies.Singletons = list(p.singletons)
		pr.Dependents.Actions = []string{}
		plugins[name] = pr
	}

	for _, name := range services {
		s := b.services[name]

		for _, dep := range s.singletons {
			singletons[dep].Dependents.Services = append(singletons[dep].Dependents.Services, name)
		}

		for _, dep := range s.globalActions() {
			actions[dep].Dependents.Services = append(actions[dep].Dependents.Services, name)
		}

		for _, local := range s.RequiredLocalActions() {
			dep := LocalActionName(name, local)
			actions[dep].Dependents.Services = append(actions[dep].Dependents.Services, name)
		}
	}

	for _, name := range sortedKeys(b.singletons) {
		for _, dep := range b.singletons[name].singletons {
			singletons[dep].Dependents.Singletons = append(singletons[dep].Dependents.Singletons, name)
		}
	}

	for _, name := range sortedKeys(b.plugins) {
		for _, dep := range b.plugins[name].singletons {
			singletons[dep].Dependents.Plugins = append(singletons[dep].Dependents.Plugins, name)
		}
	}

	for _, name := range sortedKeys(b.actions) {
		a := b.actions[name]

		for _, dep := range a.actions {
			actions[dep].Dependents.Actions = append(actions[dep].Dependents.Actions, name)
		}

		for _, dep := range a.singletons {
			singletons[dep].Dependents.Actions = append(singletons[dep].Dependents.Actions, name)
		}

		for _, dep := range a.RequiredPlugins() {
			plugins[dep].Dependents.Actions = append(plugins[dep].Dependents.Actions, name)
		}
	}

	for name, sr := range singletons {
		r.Singletons[name] = *sr
	}

	for name, ar := range actions {
		r.Actions[name] = *ar
	}

	for name, pr := range plugins {
		r.Plugins[name] = *pr
	}

	return r, nil
}

// list returns a copy of names that is never nil, so reports encode empty
// lists as [].
func list(names []string) []string {
	return append([]string{}, names...)
}
