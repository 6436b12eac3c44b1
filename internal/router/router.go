// Package router wires the HTTP handlers of the site onto a chi router.
package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/profilesite/internal/auth"
	"github.com/patric-chuzhbe/profilesite/internal/logger"
	"github.com/patric-chuzhbe/profilesite/internal/models"
	"github.com/patric-chuzhbe/profilesite/internal/user"
	"github.com/patric-chuzhbe/profilesite/internal/views"
)

// Messages shown to the visitor.
const (
	MessageInvalidCredentials = "Invalid Credentials!"
	MessageSignupSuccessful   = "Signup successful!"
	MessageUserExists         = "A user with this email already exists."
	MessageSignupFailed       = "An error occurred during signup. Please try again."
	MessageUnsupportedFile    = "Unsupported file type. Please upload a png, jpg, jpeg or gif image."
	MessageInternalError      = "Something went wrong. Please try again."
)

// Values of the error query parameter of the index page.
const (
	ErrorExists          = "exists"
	ErrorSignupFailed    = "signup_failed"
	ErrorUnsupportedFile = "unsupported_file"
)

var indexErrorMessages = map[string]string{
	ErrorExists:          MessageUserExists,
	ErrorSignupFailed:    MessageSignupFailed,
	ErrorUnsupportedFile: MessageUnsupportedFile,
}

const pageTitle = "Profile"

type accountService interface {
	Signup(ctx context.Context, request *models.SignupRequest, image io.Reader) (*user.User, error)
	Signin(ctx context.Context, email, password string) (*user.User, error)
}

type sessionKeeper interface {
	SaveSession(response http.ResponseWriter, session *auth.Session) error
	ClearSession(response http.ResponseWriter)
	SetFlash(response http.ResponseWriter, message string)
	PopFlash(response http.ResponseWriter, request *http.Request) string
	RequireSession(h http.Handler) http.Handler
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the settings the handlers need beyond their collaborators.
type Options struct {
	// StaticDir is served under StaticURLBase when StaticURLBase is a path.
	StaticDir string

	// StaticURLBase prefixes relative image references on the welcome page.
	StaticURLBase string

	// MaxUploadSize bounds the signup request body.
	MaxUploadSize int64

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Router holds the handler dependencies.
type Router struct {
	db      pinger
	service accountService
	auth    sessionKeeper
	views   *views.Views
	options Options
}

// New builds the chi router with logging, panic recovery and compression.
func New(
	db pinger,
	service accountService,
	theAuth sessionKeeper,
	theViews *views.Views,
	options Options,
) *chi.Mux {
	myRouter := &Router{
		db:      db,
		service: service,
		auth:    theAuth,
		views:   theViews,
		options: options,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		middleware.Recoverer,
		middleware.Compress(5, "text/html", "text/css", "application/javascript"),
	)

	router.Get(`/`, myRouter.GetIndex)
	router.Get(`/signup`, myRouter.GetForm)
	router.Post(`/signup`, myRouter.PostSignup)
	router.Get(`/signin`, myRouter.GetForm)
	router.Post(`/signin`, myRouter.PostSignin)
	router.With(theAuth.RequireSession).Get(`/welcome`, myRouter.GetWelcome)
	router.Get(`/logout`, myRouter.GetLogout)
	router.Get(`/ping`, myRouter.GetPing)

	if options.MetricsHandler != nil {
		router.Handle(`/metrics`, options.MetricsHandler)
	}

	if prefix := strings.TrimRight(options.StaticURLBase, "/"); strings.HasPrefix(prefix, "/") && options.StaticDir != "" {
		fileServer := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(options.StaticDir)))
		router.Handle(prefix+"/*", fileServer)
	}

	return router
}

// GetIndex clears the session and renders the signup and signin forms,
// with the message matching the error query parameter, if any.
func (router *Router) GetIndex(res http.ResponseWriter, req *http.Request) {
	router.auth.ClearSession(res)

	flash := router.auth.PopFlash(res, req)
	if message, ok := indexErrorMessages[req.URL.Query().Get("error")]; ok {
		flash = message
	}

	router.renderIndex(res, http.StatusOK, flash)
}

// GetForm renders the forms without touching the session.
func (router *Router) GetForm(res http.ResponseWriter, req *http.Request) {
	router.renderIndex(res, http.StatusOK, router.auth.PopFlash(res, req))
}

// PostSignup registers a user from the multipart signup form.
func (router *Router) PostSignup(res http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(res, req.Body, router.options.MaxUploadSize)
	if err := req.ParseMultipartForm(router.options.MaxUploadSize); err != nil {
		logger.Log.Infoln("Error calling the `req.ParseMultipartForm()`:", zap.Error(err))
		router.redirectToIndexWithError(res, req, ErrorSignupFailed)
		return
	}
	defer func() {
		if err := req.MultipartForm.RemoveAll(); err != nil {
			logger.Log.Debugln("Error calling the `req.MultipartForm.RemoveAll()`:", zap.Error(err))
		}
	}()

	request := &models.SignupRequest{
		Name:     req.FormValue("name"),
		Email:    req.FormValue("email"),
		Password: req.FormValue("password"),
	}

	var image io.Reader
	file, header, err := req.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		image = file
		request.ImageFilename = header.Filename
	case errors.Is(err, http.ErrMissingFile):
	default:
		logger.Log.Infoln("Error calling the `req.FormFile()`:", zap.Error(err))
		router.redirectToIndexWithError(res, req, ErrorSignupFailed)
		return
	}

	usr, err := router.service.Signup(req.Context(), request, image)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateEmail):
			router.redirectToIndexWithError(res, req, ErrorExists)
		case errors.Is(err, models.ErrUnsupportedFileType):
			router.redirectToIndexWithError(res, req, ErrorUnsupportedFile)
		default:
			logger.Log.Errorln("Error calling the `router.service.Signup()`:", zap.Error(err))
			router.redirectToIndexWithError(res, req, ErrorSignupFailed)
		}
		return
	}

	if err := router.saveSession(res, usr); err != nil {
		router.redirectToIndexWithError(res, req, ErrorSignupFailed)
		return
	}
	router.auth.SetFlash(res, MessageSignupSuccessful)
	http.Redirect(res, req, "/welcome", http.StatusFound)
}

// PostSignin signs a user in. Unknown emails and wrong passwords produce
// the same message.
func (router *Router) PostSignin(res http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		router.renderIndex(res, http.StatusBadRequest, MessageInvalidCredentials)
		return
	}

	usr, err := router.service.Signin(req.Context(), req.PostFormValue("email"), req.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			router.renderIndex(res, http.StatusOK, MessageInvalidCredentials)
			return
		}
		logger.Log.Errorln("Error calling the `router.service.Signin()`:", zap.Error(err))
		router.renderIndex(res, http.StatusInternalServerError, MessageInternalError)
		return
	}

	if err := router.saveSession(res, usr); err != nil {
		router.renderIndex(res, http.StatusInternalServerError, MessageInternalError)
		return
	}
	http.Redirect(res, req, "/welcome", http.StatusFound)
}

// GetWelcome renders the profile of the signed-in user.
func (router *Router) GetWelcome(res http.ResponseWriter, req *http.Request) {
	session, ok := auth.SessionFromContext(req.Context())
	if !ok {
		http.Redirect(res, req, "/", http.StatusFound)
		return
	}

	data := views.WelcomeData{
		Page:     router.page(router.auth.PopFlash(res, req)),
		Username: session.Username,
		Email:    session.Email,
		ImageURL: ResolveImageURL(router.options.StaticURLBase, session.ImageReference),
	}
	if err := router.views.Render(res, http.StatusOK, views.WelcomePage, data); err != nil {
		logger.Log.Errorln("Error calling the `router.views.Render()`:", zap.Error(err))
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// GetLogout clears the session and goes back to the index page.
func (router *Router) GetLogout(res http.ResponseWriter, req *http.Request) {
	router.auth.ClearSession(res)
	http.Redirect(res, req, "/", http.StatusFound)
}

// GetPing reports whether the credential store is reachable.
func (router *Router) GetPing(res http.ResponseWriter, req *http.Request) {
	if err := router.db.Ping(req.Context()); err != nil {
		logger.Log.Errorln("Error calling the `router.db.Ping()`:", zap.Error(err))
		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}

// ResolveImageURL returns reference unchanged when it is an absolute URL and
// joins it to staticURLBase otherwise.
func ResolveImageURL(staticURLBase, reference string) string {
	if parsed, err := url.Parse(reference); err == nil && parsed.IsAbs() {
		return reference
	}

	return strings.TrimRight(staticURLBase, "/") + "/" + strings.TrimLeft(reference, "/")
}

func (router *Router) saveSession(res http.ResponseWriter, usr *user.User) error {
	err := router.auth.SaveSession(res, &auth.Session{
		Username:       usr.Name,
		Email:          usr.Email,
		ImageReference: usr.ImageReference,
	})
	if err != nil {
		logger.Log.Errorln("Error calling the `router.auth.SaveSession()`:", zap.Error(err))
	}

	return err
}

func (router *Router) redirectToIndexWithError(res http.ResponseWriter, req *http.Request, code string) {
	http.Redirect(res, req, "/?error="+url.QueryEscape(code), http.StatusFound)
}

func (router *Router) page(flash string) views.Page {
	return views.Page{
		Title:         pageTitle,
		Flash:         flash,
		StaticURLBase: strings.TrimRight(router.options.StaticURLBase, "/"),
	}
}

func (router *Router) renderIndex(res http.ResponseWriter, status int, flash string) {
	err := router.views.Render(res, status, views.IndexPage, views.IndexData{Page: router.page(flash)})
	if err != nil {
		logger.Log.Errorln("Error calling the `router.views.Render()`:", zap.Error(err))
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
