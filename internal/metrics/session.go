package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del ciclo de vida de credenciales. Paquete propio
// para evitar ciclos de import entre session y el surface de ops.

var (
	SignInAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_signin_attempts_total",
		Help: "Intentos de sign-in por resultado",
	}, []string{"status"})

	RotationAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_rotation_attempts_total",
		Help: "Intentos de rotación por outcome",
	}, []string{"status"})

	TokensSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_tokens_swept_total",
		Help: "Rotation tokens eliminados por el sweep",
	})

	VerifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_verify_duration_ms",
		Help:    "Latencia de la verificación de rotación en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// RegisterSession registra las métricas en el registry dado (o el default si es nil).
func RegisterSession(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{SignInAttempts, RotationAttempts, TokensSwept, VerifyDuration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
