package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

// Duration crea un campo para la duración de un request o de una espera de acks.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// =================================================================================
// CAMPOS - REGISTRO Y CLUSTER
// =================================================================================

// Policy nombre de la policy afectada.
func Policy(v string) zap.Field { return zap.String("policy", v) }

// Version del snapshot.
func Version(v uint64) zap.Field { return zap.Uint64("version", v) }

// MutationID correlaciona logs de una misma mutación entre nodos.
func MutationID(v string) zap.Field { return zap.String("mutation_id", v) }

// MutationType tipo de mutación (policy.put, policy.delete).
func MutationType(v string) zap.Field { return zap.String("mutation_type", v) }

// Member id de un nodo del cluster.
func Member(v string) zap.Field { return zap.String("member", v) }

// Leader id del líder conocido.
func Leader(v string) zap.Field { return zap.String("leader", v) }

// Acks cantidad de acks recibidos vs requeridos.
func Acks(got, need int) zap.Field {
	return zap.Dict("acks", zap.Int("got", got), zap.Int("need", need))
}

// =================================================================================
// CAMPOS - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }

// Op operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer capa (controller, action, coordinator, fsm).
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int) zap.Field { return zap.Int("count", v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
