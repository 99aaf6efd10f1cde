package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"foodhub/pkg/cart"
	cartmem "foodhub/pkg/cart/memory"
	cartpg "foodhub/pkg/cart/postgres"
	cartredis "foodhub/pkg/cart/redis"
	"foodhub/pkg/gate"
	"foodhub/pkg/logger"
	"foodhub/pkg/order"
	"foodhub/pkg/otel"
	"foodhub/pkg/session"
)

const cartCookie = "cart_id"

var (
	log    *logger.Logger
	tracer trace.Tracer

	orders   *order.Client
	sessions session.Resolver

	carts = struct {
		sync.Mutex
		byID map[string]*cart.Store
	}{byID: make(map[string]*cart.Store)}
	newStorage func(key string) cart.Persistence
)

// @title FoodHub Front Server
// @version 1.0
// @description Access gate, cart and checkout for the FoodHub app
// @host localhost:8080
// @BasePath /
func main() {
	log = logger.New("foodhub", otel.GetTraceID)
	defer log.Sync()

	tp, shutdown, err := otel.InitTracing(otel.Config{
		ServiceName: "foodhub",
		Host:        os.Getenv("OTEL_HOST"),
		Probability: 1.0,
	})
	if err != nil {
		log.Error(context.Background(), "init tracing", "error", err)
		os.Exit(1)
	}
	defer shutdown(context.Background())
	tracer = tp.Tracer("foodhub")

	backend := os.Getenv("BACKEND_URL")
	if backend == "" {
		log.Error(context.Background(), "BACKEND_URL is required")
		os.Exit(1)
	}
	backendURL, err := url.Parse(backend)
	if err != nil {
		log.Error(context.Background(), "parse BACKEND_URL", "error", err)
		os.Exit(1)
	}

	sessions = session.NewClient(backend)
	orders = order.NewClient(backend)

	if err := setupCartStorage(); err != nil {
		log.Error(context.Background(), "cart storage", "error", err)
		os.Exit(1)
	}

	r := mux.NewRouter()
	r.Use(traceMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cart", getCartHandler).Methods(http.MethodGet)
	api.HandleFunc("/cart", clearCartHandler).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", addCartItemHandler).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}", updateCartItemHandler).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{id}", removeCartItemHandler).Methods(http.MethodDelete)
	api.HandleFunc("/checkout", checkoutHandler).Methods(http.MethodPost)
	api.PathPrefix("/backend/").Handler(http.StripPrefix("/api/backend", backendProxy(backendURL)))

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	g := gate.New(sessions, log)
	r.PathPrefix("/").Handler(g.Middleware(pagesHandler()))

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Info(context.Background(), "listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Error(context.Background(), "server closed", "error", err)
	}
}

// setupCartStorage selects the persistence backend: CART_STORAGE overrides,
// otherwise redis when REDIS_ADDR is set, then postgres, then memory.
func setupCartStorage() error {
	kind := os.Getenv("CART_STORAGE")
	if kind == "" {
		switch {
		case os.Getenv("REDIS_ADDR") != "":
			kind = "redis"
		case os.Getenv("DATABASE_URL") != "":
			kind = "postgres"
		default:
			kind = "memory"
		}
	}

	switch kind {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDR")})
		newStorage = func(key string) cart.Persistence { return cartredis.New(client, key) }
	case "postgres":
		db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
		if err != nil {
			return err
		}
		if _, err := db.Exec("CREATE TABLE IF NOT EXISTS carts (key TEXT PRIMARY KEY, snapshot JSONB NOT NULL)"); err != nil {
			return err
		}
		newStorage = func(key string) cart.Persistence { return cartpg.New(db, key) }
	case "memory":
		newStorage = func(key string) cart.Persistence { return cartmem.New() }
	default:
		return errors.New("unknown CART_STORAGE " + kind)
	}
	log.Info(context.Background(), "cart storage ready", "kind", kind)
	return nil
}

// cartFor returns the visitor's store, issuing the cart cookie on first
// contact and rehydrating the store from persistence.
func cartFor(ctx context.Context, w http.ResponseWriter, r *http.Request) *cart.Store {
	var id string
	if c, err := r.Cookie(cartCookie); err == nil && c.Value != "" {
		id = c.Value
	} else {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     cartCookie,
			Value:    id,
			Path:     "/",
			Expires:  time.Now().Add(365 * 24 * time.Hour),
			HttpOnly: true,
		})
	}

	carts.Lock()
	defer carts.Unlock()
	if s, ok := carts.byID[id]; ok {
		return s
	}
	s := cart.New(ctx, newStorage("foodhub:cart:"+id), log)
	carts.byID[id] = s
	return s
}

// cartView is the cart as handlers render it, with the derived values
// recomputed on every read.
type cartView struct {
	Items     []cart.Line `json:"items"`
	ItemCount int         `json:"itemCount"`
	Total     float64     `json:"total"`
}

func viewOf(s *cart.Store) cartView {
	items := s.Items()
	if items == nil {
		items = []cart.Line{}
	}
	return cartView{Items: items, ItemCount: s.ItemCount(), Total: s.Total()}
}

func respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"message": msg})
}

// getCartHandler returns the visitor's cart.
// @Summary Get cart
// @Produce json
// @Success 200 {object} cartView
// @Router /api/cart [get]
func getCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getCartHandler")
	defer span.End()

	respond(w, http.StatusOK, viewOf(cartFor(ctx, w, r)))
}

// addCartItemHandler adds a meal to the cart, merging quantity when the
// meal is already present.
// @Summary Add cart item
// @Accept json
// @Produce json
// @Param meal body cart.Meal true "Meal"
// @Success 200 {object} cartView
// @Router /api/cart/items [post]
func addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "addCartItemHandler")
	defer span.End()

	var meal cart.Meal
	if err := json.NewDecoder(r.Body).Decode(&meal); err != nil || meal.ID == "" {
		respondError(w, http.StatusBadRequest, "invalid meal")
		return
	}
	if meal.Price < 0 {
		respondError(w, http.StatusBadRequest, "invalid price")
		return
	}
	s := cartFor(ctx, w, r)
	s.AddItem(ctx, meal)
	respond(w, http.StatusOK, viewOf(s))
}

// updateCartItemHandler sets a line's quantity (floored at 1).
// @Summary Update cart item quantity
// @Accept json
// @Produce json
// @Param id path string true "Meal ID"
// @Param quantity body updateQuantityRequest true "Quantity"
// @Success 200 {object} cartView
// @Router /api/cart/items/{id} [put]
func updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateCartItemHandler")
	defer span.End()

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s := cartFor(ctx, w, r)
	s.UpdateQuantity(ctx, mux.Vars(r)["id"], req.Quantity)
	respond(w, http.StatusOK, viewOf(s))
}

// updateQuantityRequest carries the new quantity for a cart line.
type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// removeCartItemHandler deletes a line. Idempotent.
// @Summary Remove cart item
// @Produce json
// @Param id path string true "Meal ID"
// @Success 200 {object} cartView
// @Router /api/cart/items/{id} [delete]
func removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "removeCartItemHandler")
	defer span.End()

	s := cartFor(ctx, w, r)
	s.RemoveItem(ctx, mux.Vars(r)["id"])
	respond(w, http.StatusOK, viewOf(s))
}

// clearCartHandler empties the cart.
// @Summary Clear cart
// @Produce json
// @Success 200 {object} cartView
// @Router /api/cart [delete]
func clearCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "clearCartHandler")
	defer span.End()

	s := cartFor(ctx, w, r)
	s.Clear(ctx)
	respond(w, http.StatusOK, viewOf(s))
}

// checkoutRequest carries delivery overrides; empty fields fall back to
// the session profile.
type checkoutRequest struct {
	DeliveryAddress string `json:"deliveryAddress"`
	DeliveryPhone   string `json:"deliveryPhone"`
}

// checkoutHandler places the order for the cart contents and clears the
// cart only once the backend has accepted it.
// @Summary Checkout
// @Accept json
// @Produce json
// @Param body body checkoutRequest false "Delivery overrides"
// @Success 201 {object} order.Placed
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/checkout [post]
func checkoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "checkoutHandler")
	defer span.End()

	cookieHeader := r.Header.Get("Cookie")
	sess, err := sessions.Resolve(ctx, cookieHeader)
	if err != nil {
		log.Error(ctx, "session lookup", "error", err)
		sess = nil
	}
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "please log in before placing an order")
		return
	}

	var req checkoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.DeliveryAddress == "" {
		req.DeliveryAddress = sess.User.Address
	}
	if req.DeliveryPhone == "" {
		req.DeliveryPhone = sess.User.Phone
	}

	s := cartFor(ctx, w, r)
	o, err := order.FromSnapshot(s.Snapshot(), req.DeliveryAddress, req.DeliveryPhone)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	placed, err := orders.Place(ctx, cookieHeader, o)
	if err != nil {
		log.Error(ctx, "place order", "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.Clear(ctx)
	log.Info(ctx, "order placed", "order_id", placed.ID, "user_id", sess.User.ID)
	respond(w, http.StatusCreated, placed)
}

// backendProxy forwards /api/backend/* to the FoodHub backend untouched.
func backendProxy(target *url.URL) http.Handler {
	p := httputil.NewSingleHostReverseProxy(target)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error(r.Context(), "backend proxy", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusBadGateway, "backend unavailable")
	}
	return p
}

// pagesHandler serves the built web app, falling back to index.html for
// client-routed paths. The gate has already run by the time this does.
func pagesHandler() http.Handler {
	dir := os.Getenv("WEB_DIR")
	if dir == "" {
		dir = "web/dist"
	}
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(strings.TrimPrefix(r.URL.Path, "/")))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}

func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.InjectTracing(r.Context(), tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
