package main

import (
	"context"
	"log"

	"github.com/barmeter-community/barmeter-agent/internal/api"
)

type apiClientContextKey int

const (
	defaultApiClientContextKey apiClientContextKey = 0
)

var (
	Version string
	Commit  string
	Date    string
)

func clientIntoContext(ctx context.Context, client *api.Client) context.Context {
	return context.WithValue(ctx, defaultApiClientContextKey, client)
}

func clientFromContext(ctx context.Context) *api.Client {
	client, ok := ctx.Value(defaultApiClientContextKey).(*api.Client)
	if !ok {
		panic("api client not found in context")
	}
	return client
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
