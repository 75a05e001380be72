package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"comicshelf/internal/app"
	"comicshelf/internal/catalogrpc"
)

func main() {
	configPath := flag.String("config", "", "config file path (default ~/.comicshelf/config.toml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	a, err := app.Open(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	listener, err := net.Listen("tcp", a.Config.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	grpcServer := grpc.NewServer()
	catalogrpc.RegisterCatalogServer(grpcServer, catalogrpc.NewServer(a.Store, nil, a.Logger))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		a.Logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		grpcServer.GracefulStop()
	}()

	a.Logger.Info("grpc server listening", slog.String("addr", a.Config.GRPCAddr))
	if err := grpcServer.Serve(listener); err != nil {
		return fmt.Errorf("grpc server stopped: %w", err)
	}
	return nil
}
