package app_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	app "github.com/okian/homeview/internal/app"
	"github.com/okian/homeview/internal/adapters/http/controller"
	"github.com/okian/homeview/internal/adapters/http/render"
	"github.com/okian/homeview/internal/config"
	"github.com/okian/homeview/internal/domain/view"
	. "github.com/smartystreets/goconvey/convey"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Addr = "127.0.0.1:0"
	return cfg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestService_Build(t *testing.T) {
	Convey("Given a service over the embedded templates", t, func() {
		svc := app.New(app.WithConfig(testConfig()))

		Convey("When building the handler", func() {
			h, err := svc.Build(context.Background())
			So(err, ShouldBeNil)

			serve := func(method, target string) *httptest.ResponseRecorder {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(method, target, http.NoBody))
				return w
			}

			Convey("Then GET / should render the home view", func() {
				w := serve(http.MethodGet, "/")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "Welcome home")
				So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
			})

			Convey("And the production page should be minified without a reload client", func() {
				w := serve(http.MethodGet, "/")
				So(w.Body.String(), ShouldNotContainSubstring, "WebSocket")
				So(w.Body.String(), ShouldNotContainSubstring, "</body>")
			})

			Convey("And unbound paths should 404", func() {
				So(serve(http.MethodGet, "/message").Code, ShouldEqual, http.StatusNotFound)
				So(serve(http.MethodGet, "/home").Code, ShouldEqual, http.StatusNotFound)
				So(serve(http.MethodGet, "/static/site.css").Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And the live reload endpoint should not exist", func() {
				So(serve(http.MethodGet, "/__livereload").Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And operational endpoints should be mounted", func() {
				So(serve(http.MethodGet, "/healthz").Code, ShouldEqual, http.StatusOK)
				So(serve(http.MethodGet, "/metrics").Code, ShouldEqual, http.StatusOK)
				So(serve(http.MethodGet, "/stats").Body.String(), ShouldContainSubstring, `"views":1`)
				So(serve(http.MethodGet, "/openapi.yaml").Code, ShouldEqual, http.StatusOK)
			})
		})
	})

	Convey("Given a built service over an on-disk template dir", t, func() {
		dir := t.TempDir()
		So(os.MkdirAll(filepath.Join(dir, "views"), 0o755), ShouldBeNil)
		home := filepath.Join(dir, "views", "home.html")
		So(os.WriteFile(home, []byte(`version one`), 0o600), ShouldBeNil)

		cfg := testConfig()
		cfg.TemplateDir = dir
		svc := app.New(app.WithConfig(cfg))
		first, err := svc.Build(context.Background())
		So(err, ShouldBeNil)

		Convey("When the template changes and Build is called again", func() {
			So(os.WriteFile(home, []byte(`version two`), 0o600), ShouldBeNil)
			again, err := svc.Build(context.Background())
			So(err, ShouldBeNil)

			Convey("Then the templates should not be parsed a second time", func() {
				for _, h := range []http.Handler{first, again} {
					w := httptest.NewRecorder()
					h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
					So(w.Body.String(), ShouldContainSubstring, "version one")
				}
			})
		})
	})

	Convey("Given templates that lack the configured suffix", t, func() {
		cfg := testConfig()
		cfg.ViewSuffix = ".jsp"
		svc := app.New(app.WithConfig(cfg))

		Convey("Then Build should fail fast", func() {
			_, err := svc.Build(context.Background())
			So(errors.Is(err, render.ErrParse), ShouldBeTrue)
		})
	})

	Convey("Given a template override without a home view", t, func() {
		svc := app.New(
			app.WithConfig(testConfig()),
			app.WithTemplates(fstest.MapFS{"views/about.html": {Data: []byte("about")}}),
		)

		Convey("Then Build should fail naming the missing view", func() {
			_, err := svc.Build(context.Background())
			So(errors.Is(err, render.ErrViewNotFound), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, `"home"`)
		})

		Convey("And Start should not bind the listener", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
			So(svc.Addr(), ShouldEqual, "127.0.0.1:0")
		})
	})

	Convey("Given a custom route whose view exists only in the override", t, func() {
		routes := []controller.Route{{
			Name:       "about",
			Pattern:    "/{$}",
			View:       "about",
			Controller: controller.Func(func(*http.Request) view.Token { return "about" }),
		}}
		svc := app.New(
			app.WithConfig(testConfig()),
			app.WithTemplates(fstest.MapFS{"views/about.html": {Data: []byte("about page")}}),
			app.WithRoutes(routes),
		)

		Convey("Then Build should accept it and health should be degraded without home", func() {
			h, err := svc.Build(context.Background())
			So(err, ShouldBeNil)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
			So(w.Body.String(), ShouldContainSubstring, "about page")

			w = httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})

	Convey("Given a duplicate route table", t, func() {
		home := controller.NewHomeController()
		svc := app.New(app.WithConfig(testConfig()), app.WithRoutes([]controller.Route{
			{Name: "home", Pattern: "/{$}", Controller: home},
			{Name: "home", Pattern: "/again", Controller: home},
		}))

		Convey("Then Build should reject it", func() {
			_, err := svc.Build(context.Background())
			So(errors.Is(err, controller.ErrDuplicateRoute), ShouldBeTrue)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := app.New(app.WithConfig(testConfig()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		base := "http://" + svc.Addr()

		Convey("When a client GETs the root path over the network", func() {
			code, body := get(t, base+"/")

			Convey("Then the rendered home page should be returned", func() {
				So(code, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, "Welcome home")
			})
		})

		Convey("When starting again", func() {
			Convey("Then it should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})

		Convey("When reading stats", func() {
			stats := svc.GetStats()

			Convey("Then the service should report started", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["routes"], ShouldEqual, 1)
			})
		})

		Convey("When stopping", func() {
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then the listener should be closed", func() {
				_, err := http.Get(base + "/")
				So(err, ShouldNotBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given an address that is already bound", t, func() {
		first := app.New(app.WithConfig(testConfig()))
		ctx := context.Background()
		So(first.Start(ctx), ShouldBeNil)
		defer func() { _ = first.Stop(ctx) }()

		cfg := testConfig()
		cfg.Addr = first.Addr()
		second := app.New(app.WithConfig(cfg))

		Convey("Then Start should fail", func() {
			So(second.Start(ctx), ShouldNotBeNil)
		})
	})
}

func TestService_DevMode(t *testing.T) {
	Convey("Given a dev-mode service over an on-disk template dir", t, func() {
		dir := t.TempDir()
		So(os.MkdirAll(filepath.Join(dir, "views"), 0o755), ShouldBeNil)
		home := filepath.Join(dir, "views", "home.html")
		So(os.WriteFile(home, []byte(`<p>v1</p>{{ liveReload }}`), 0o600), ShouldBeNil)

		cfg := testConfig()
		cfg.DevMode = true
		cfg.TemplateDir = dir
		svc := app.New(app.WithConfig(cfg))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		base := "http://" + svc.Addr()

		Convey("When the page is requested", func() {
			_, body := get(t, base+"/")

			Convey("Then it should carry the reload client", func() {
				So(body, ShouldContainSubstring, "<p>v1</p>")
				So(body, ShouldContainSubstring, "/__livereload")
			})
		})

		Convey("When a browser is connected and the template changes", func() {
			ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/__livereload", nil)
			So(err, ShouldBeNil)
			defer ws.Close()

			time.Sleep(150 * time.Millisecond)
			So(os.WriteFile(home, []byte(`<p>v2</p>`), 0o600), ShouldBeNil)

			Convey("Then it should be told to reload and the new page served", func() {
				_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
				_, msg, err := ws.ReadMessage()
				So(err, ShouldBeNil)
				So(string(msg), ShouldEqual, "reload")

				_, body := get(t, base+"/")
				So(body, ShouldContainSubstring, "<p>v2</p>")
			})
		})
	})
}
