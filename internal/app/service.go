package app

import (
	"fmt"

	"github.com/shrimpsizemoose/lussekatt/internal/store"
)

type Service struct {
	Config *Config
	Store  store.Store
	Tokens *TokenManager
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	tokens, err := NewTokenManager(config)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init token manager: %w", err)
	}

	return &Service{
		Config: config,
		Store:  store,
		Tokens: tokens,
	}, nil
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Tokens.Close(); err != nil {
		errs = append(errs, fmt.Errorf("tokens: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
