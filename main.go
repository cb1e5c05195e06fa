package main

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"casa_pronosticos/api"
	"casa_pronosticos/config"
)

func main() {
	cfg := config.Load()

	r := gin.Default()
	if err := api.InitRoutes(r, cfg); err != nil {
		panic(fmt.Errorf("error wiring routes: %v", err))
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		panic(fmt.Errorf("error trying to start server: %v", err))
	}
}
