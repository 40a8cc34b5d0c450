package main

import (
	"os"

	_ "todotree/docs"
)

// @title           Todo Tree API
// @version         1.0
// @description     API for managing nested to-do lists with generated subtask suggestions.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
