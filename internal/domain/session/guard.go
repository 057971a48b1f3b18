package session

import "sync"

// GuardState is the route guard state
type GuardState string

const (
	GuardPending     GuardState = "PENDING"
	GuardAuthorized  GuardState = "AUTHORIZED"
	GuardRedirecting GuardState = "REDIRECTING"
)

// View is what a guarded page shows
type View int

const (
	// ViewLoading is a neutral indicator shown until the session resolves
	ViewLoading View = iota
	// ViewProtected renders the protected content
	ViewProtected
	// ViewNothing renders nothing while the redirect happens
	ViewNothing
)

// LoginPath is where unauthenticated viewers are sent
const LoginPath = "/login"

// Guard gates a protected page on the resolved session.
//
// PENDING moves to AUTHORIZED on a user and to REDIRECTING on nil. An
// authorized viewer who signs out also moves to REDIRECTING. REDIRECTING is
// terminal for the guard's lifetime and the redirect callback runs once.
type Guard struct {
	mu         sync.Mutex
	state      GuardState
	redirect   func(path string)
	redirected bool
}

// NewGuard creates a guard in PENDING. redirect may be nil.
func NewGuard(redirect func(path string)) *Guard {
	return &Guard{state: GuardPending, redirect: redirect}
}

// Resolve feeds a resolved session into the guard and returns the new state
func (g *Guard) Resolve(user *User) GuardState {
	g.mu.Lock()
	fire := false
	switch g.state {
	case GuardPending, GuardAuthorized:
		if user != nil {
			g.state = GuardAuthorized
		} else {
			g.state = GuardRedirecting
			fire = !g.redirected
			g.redirected = true
		}
	}
	state := g.state
	redirect := g.redirect
	g.mu.Unlock()

	if fire && redirect != nil {
		redirect(LoginPath)
	}
	return state
}

// State returns the current state
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// CanRender reports whether protected content may be shown
func (g *Guard) CanRender() bool {
	return g.State() == GuardAuthorized
}

// View returns what the page should show for the current state
func (g *Guard) View() View {
	switch g.State() {
	case GuardAuthorized:
		return ViewProtected
	case GuardRedirecting:
		return ViewNothing
	default:
		return ViewLoading
	}
}
