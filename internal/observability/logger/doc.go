// Package logger expone un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Scoping: cada request o mutación puede llevar su propio logger con campos
//     (request_id, policy, version) sin crear un core nuevo.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON.
//
// # Uso
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, NodeID: cfg.Cluster.NodeID})
//	defer logger.Sync()
//
//	log := logger.From(ctx)
//	log.Info("policy deleted", logger.Policy(name), logger.Version(v))
package logger
