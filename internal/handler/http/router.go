package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neosign/identity/pkg/health"
	"github.com/neosign/identity/pkg/middleware"

	"github.com/neosign/identity/internal/auth"
	"github.com/neosign/identity/internal/domain"
	"github.com/neosign/identity/internal/service"
)

// NewRouter creates a chi router with all identity service routes registered.
func NewRouter(
	accountService *service.AccountService,
	otpService *service.OTPService,
	issuer *auth.TokenIssuer,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	tracingEnabled bool,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	if tracingEnabled {
		r.Use(middleware.Tracing("identity"))
	}
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("identity"))

	// Operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator bridging the middleware to the issuer.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := issuer.Validate(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Roles:  claims.Roles,
		}, nil
	}

	authHandler := NewAuthHandler(accountService, logger)
	userHandler := NewUserHandler(accountService, logger)
	otpHandler := NewOTPHandler(otpService, logger)

	r.Route("/protected-resource", func(r chi.Router) {
		// Public lifecycle endpoints
		r.Route("/authen", func(r chi.Router) {
			r.Post("/CreateUser", authHandler.CreateUser)
			r.Get("/ConfirmEmail", authHandler.ConfirmEmail)
			r.With(ContentTypeJSON).Post("/{email}/Registre", authHandler.Register)
			r.With(ContentTypeJSON).Post("/login", authHandler.Login)
		})

		r.Route("/user", func(r chi.Router) {
			// Forgot-password reset is public; OTP verification gates it
			// upstream in the flow.
			r.With(ContentTypeJSON).Put("/newpassword", userHandler.NewPassword)

			// Authenticated profile endpoints
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(tokenValidator))
				r.Use(middleware.RequireRole(domain.RoleUser))

				r.Get("/", userHandler.GetUser)
				r.With(ContentTypeJSON).Post("/ChangePasword", userHandler.ChangePassword)
				r.With(ContentTypeJSON).Put("/updateuser", userHandler.UpdateProfile)
			})
		})

		// Authenticated OTP endpoints
		r.Route("/otp", func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Use(middleware.RequireRole(domain.RoleUser))

			r.Post("/addotp/{userid}", otpHandler.AddOTP)
			r.Post("/addPassOtp/{userEmail}", otpHandler.AddPassOTP)
			r.Get("/verify/{userid}/otp/{code}", otpHandler.Verify)
			r.Get("/verify/{Email}/Passotp/{code}", otpHandler.VerifyPass)
		})
	})

	return r
}
