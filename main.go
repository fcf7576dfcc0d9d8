package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"gkiportal-backend/internal/inventory/opname"
	"gkiportal-backend/internal/inventory/products"
	"gkiportal-backend/internal/lending/loans"
	"gkiportal-backend/internal/lending/rooms"
	"gkiportal-backend/internal/lending/transport"
	"gkiportal-backend/internal/platform/auth"
	"gkiportal-backend/internal/platform/db"
)

func main() {
	// .env feeds the environment overrides LoadConfig applies
	_ = godotenv.Load()

	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	log.Printf("[INFO] mode:%s\n", cfg.Mode)
	if cfg.Mode != "dev" && cfg.Mode != "release" {
		log.Fatal("config mode must be dev or release")
	}

	secret := []byte(os.Getenv("JWT_SECRET"))
	if len(secret) == 0 {
		log.Fatal("JWT_SECRET is not set")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	r.StaticFile("/openapi.yaml", "api/openapi.yaml")
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/openapi.yaml")))

	authSvc := auth.NewService(conn, secret)

	// /api/v1 splits into the public login surface, the authenticated member
	// surface and the management surface gated by role.
	public := r.Group("/api/v1")
	auth.RegisterPublicRoutes(public, authSvc)

	api := r.Group("/api/v1", auth.RequireAuth(secret))
	mgmt := r.Group("/api/v1/admin", auth.RequireAuth(secret), auth.RequireManagement())

	auth.RegisterRoutes(api, mgmt, authSvc)
	products.RegisterRoutes(api, mgmt, products.NewService(conn))
	loans.RegisterRoutes(api, mgmt, loans.NewService(conn))
	rooms.RegisterRoutes(api, mgmt, rooms.NewService(conn))
	transport.RegisterRoutes(api, mgmt, transport.NewService(conn))
	opname.RegisterRoutes(mgmt, opname.NewService(conn))

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
