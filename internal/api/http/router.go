package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/service"
	"github.com/haneul-labs/keyshare/internal/api/store"
	"github.com/haneul-labs/keyshare/pkg/httpx"
	"github.com/haneul-labs/keyshare/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	cookieSecure bool
	startTime    time.Time
	logger       *slog.Logger

	store              store.Store
	IdentityService    *service.IdentityService
	CredentialService  *service.CredentialService
	GroupService       *service.GroupService
	InvitationService  *service.InvitationService
	EmailInviteService *service.EmailInviteService
}

func NewRouter(buildVersion string, cookieSecure bool, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		cookieSecure: cookieSecure,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerAPIKeys()
	r.registerGroups()
	r.registerInvitations()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// session wraps a handler with authentication and a per-user rate limit.
func (r *Router) session(h http.Handler, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		SessionMiddleware(r.IdentityService),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{
		Identity:     r.IdentityService,
		CookieSecure: r.cookieSecure,
		CookieMaxAge: int((24 * time.Hour).Seconds()),
	}

	// POST /login - strict rate limit by IP + email to slow brute force
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(login,
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(&LogoutHandler{CookieSecure: r.cookieSecure},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerUsers() {
	me := &MeHandler{Identity: r.IdentityService}
	password := &PasswordHandler{Identity: r.IdentityService}

	// Public signup and recovery endpoints, strict by IP.
	r.Mux.Handle("POST /api/users",
		httpx.Chain(&RegisterHandler{Identity: r.IdentityService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/users/verify-email",
		httpx.Chain(&VerifyEmailHandler{Identity: r.IdentityService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/users/reset-password/request",
		httpx.Chain(&ResetRequestHandler{Identity: r.IdentityService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/users/reset-password",
		httpx.Chain(&ResetPasswordHandler{Identity: r.IdentityService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /api/users/me", r.session(http.HandlerFunc(me.Get), httpx.LenientLimit))
	r.Mux.Handle("PUT /api/users/me", r.session(http.HandlerFunc(me.Update), httpx.ModerateLimit))
	r.Mux.Handle("DELETE /api/users/me", r.session(http.HandlerFunc(me.Deactivate), httpx.StrictLimit))
	r.Mux.Handle("PUT /api/users/me/password", r.session(http.HandlerFunc(password.Change), httpx.StrictLimit))
	r.Mux.Handle("GET /api/users/me/password-status", r.session(http.HandlerFunc(password.Status), httpx.LenientLimit))
	r.Mux.Handle("GET /api/users/search", r.session(&SearchHandler{Identity: r.IdentityService}, httpx.ModerateLimit))
}

func (r *Router) registerAPIKeys() {
	h := &APIKeysHandler{Credentials: r.CredentialService}

	r.Mux.Handle("POST /api/api-keys", r.session(http.HandlerFunc(h.Create), httpx.ModerateLimit))
	r.Mux.Handle("GET /api/api-keys", r.session(http.HandlerFunc(h.List), httpx.LenientLimit))
	r.Mux.Handle("GET /api/api-keys/{id}", r.session(http.HandlerFunc(h.Get), httpx.ModerateLimit))
	r.Mux.Handle("PUT /api/api-keys/{id}", r.session(http.HandlerFunc(h.Update), httpx.ModerateLimit))
	r.Mux.Handle("DELETE /api/api-keys/{id}", r.session(http.HandlerFunc(h.Delete), httpx.ModerateLimit))
	r.Mux.Handle("POST /api/api-keys/verify", r.session(http.HandlerFunc(h.Verify), httpx.ModerateLimit))
}

func (r *Router) registerGroups() {
	groups := &GroupsHandler{Groups: r.GroupService}
	members := &MembersHandler{Groups: r.GroupService}

	r.Mux.Handle("POST /api/groups", r.session(http.HandlerFunc(groups.Create), httpx.ModerateLimit))
	r.Mux.Handle("GET /api/groups", r.session(http.HandlerFunc(groups.List), httpx.LenientLimit))
	r.Mux.Handle("GET /api/groups/{id}", r.session(http.HandlerFunc(groups.Get), httpx.LenientLimit))
	r.Mux.Handle("PUT /api/groups/{id}", r.session(http.HandlerFunc(groups.Update), httpx.ModerateLimit))
	r.Mux.Handle("DELETE /api/groups/{id}", r.session(http.HandlerFunc(groups.Delete), httpx.ModerateLimit))

	r.Mux.Handle("POST /api/groups/{id}/members", r.session(http.HandlerFunc(members.Add), httpx.ModerateLimit))
	r.Mux.Handle("PUT /api/groups/{id}/members/{memberID}", r.session(http.HandlerFunc(members.Update), httpx.ModerateLimit))
	r.Mux.Handle("DELETE /api/groups/{id}/members/{memberID}", r.session(http.HandlerFunc(members.Remove), httpx.ModerateLimit))
	r.Mux.Handle("GET /api/groups/{id}/pending-members", r.session(http.HandlerFunc(members.Pending), httpx.LenientLimit))
	r.Mux.Handle("POST /api/groups/{id}/members/{memberID}/approve", r.session(http.HandlerFunc(members.Approve), httpx.ModerateLimit))
}

func (r *Router) registerInvitations() {
	h := &InvitationsHandler{
		Invitations: r.InvitationService,
		EmailInvite: r.EmailInviteService,
	}

	r.Mux.Handle("POST /api/groups/{id}/invite", r.session(http.HandlerFunc(h.InviteEmail), httpx.ModerateLimit))
	r.Mux.Handle("POST /api/groups/{id}/invite-user", r.session(http.HandlerFunc(h.InviteUser), httpx.ModerateLimit))
	r.Mux.Handle("POST /api/groups/accept-invitation", r.session(http.HandlerFunc(h.AcceptToken), httpx.ModerateLimit))

	// Pre-login token preview; strict by IP to slow token probing.
	r.Mux.Handle("GET /api/groups/verify-invitation",
		httpx.Chain(http.HandlerFunc(h.VerifyToken),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /api/groups/{id}/invitations", r.session(http.HandlerFunc(h.ListForGroup), httpx.LenientLimit))

	r.Mux.Handle("GET /api/invitations", r.session(http.HandlerFunc(h.ListMine), httpx.LenientLimit))
	r.Mux.Handle("POST /api/invitations/{id}/accept", r.session(http.HandlerFunc(h.Accept), httpx.ModerateLimit))
	r.Mux.Handle("POST /api/invitations/{id}/decline", r.session(http.HandlerFunc(h.Decline), httpx.ModerateLimit))
	r.Mux.Handle("POST /api/invitations/{id}/cancel", r.session(http.HandlerFunc(h.Cancel), httpx.ModerateLimit))
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently, keep this lenient.
	r.Mux.Handle("GET /api/health",
		httpx.Chain(&HealthHandler{Store: r.store, StartTime: r.startTime, Version: r.buildVersion},
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
