package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coscribe/coscribe/server/handlers"
	"github.com/coscribe/coscribe/server/internal/database"
	"github.com/coscribe/coscribe/server/internal/document/service"
)

// Standalone document store service: the REST surface without the realtime
// gateway. Useful for migrations and for fronting the store from other tools.
func main() {
	port := os.Getenv("DOC_SERVICE_PORT")
	if port == "" {
		port = "5010"
	}

	r := gin.New()
	r.Use(gin.Recovery())

	// Prefer the Mongo-backed service when MONGODB_URI is provided.
	var svc service.Service
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI != "" {
		timeout := 10 * time.Second
		if v := os.Getenv("MONGODB_TIMEOUT"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				timeout = time.Duration(secs) * time.Second
			}
		}
		client, err := database.ConnectMongo(context.Background(), mongoURI, timeout)
		if err != nil {
			log.Printf("warning: cannot connect to MongoDB (%v), using memory-backed repo", err)
			svc = service.NewMemoryService()
		} else {
			db := os.Getenv("MONGODB_DATABASE")
			if db == "" {
				db = "coscribe"
			}
			col := client.Database(db).Collection("documents")
			svc = service.NewMongoService(col)
		}
	} else {
		svc = service.NewMemoryService()
	}

	handlers.RegisterDocumentRoutes(r, svc)

	log.Printf("document service listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
