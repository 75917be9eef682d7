// Package agata is a dependency broker for long-running processes.
//
// A Broker owns four kinds of units:
//
//   - singletons: shared resources built once and torn down when no running
//     service needs them any more
//   - actions: named business functions, built once and shared
//   - plugins: a factory built once, instantiated per consuming action with
//     that action's parameters
//   - services: composition roots with a start and stop handler
//
// Units declare their dependencies by name. Dotted names ("user.getById")
// are delivered as nested namespaces; Lookup retrieves a typed value from
// one. Services may own local actions, addressed as "service#action", that no
// other unit can see.
//
// A broker validates every declaration when it is built. Starting a service
// resolves the dependency closure in a deterministic order, reporting cycles
// with their full path, and starts what is not started yet. Stopping a
// service tears down the singletons no other running service uses.
//
//	broker, err := agata.New(agata.Definitions{
//		Singletons: map[string]agata.SingletonDefinition{
//			"db": agata.SingletonConfig{Start: openDB, Stop: closeDB},
//		},
//		Actions: map[string]agata.ActionDefinition{
//			"user.get": agata.ActionConfig{Singletons: []string{"db"}, Fn: newGetUser},
//		},
//		Services: map[string]agata.ServiceDefinition{
//			"api": agata.ServiceConfig{
//				Singletons: []string{"db"},
//				Actions:    []string{"user.get"},
//				Start:      serveAPI,
//			},
//		},
//	}, agata.WithLogger(logger.NewProductionLogger()))
//
//	err = broker.StartService(ctx, "api")
package agata
