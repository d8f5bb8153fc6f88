package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/core/ports"
)

type SettingsUseCase struct {
	store ports.SettingsStore
}

func NewSettingsUseCase(store ports.SettingsStore) *SettingsUseCase {
	return &SettingsUseCase{store: store}
}

func (uc *SettingsUseCase) SaveAPIKey(ctx context.Context, key string) error {
	return uc.save(ctx, domain.SettingAPIKey, strings.TrimSpace(key))
}

func (uc *SettingsUseCase) LoadAPIKey(ctx context.Context) (string, error) {
	return uc.load(ctx, domain.SettingAPIKey)
}

func (uc *SettingsUseCase) SaveAPIBaseURL(ctx context.Context, url string) error {
	return uc.save(ctx, domain.SettingAPIBaseURL, strings.TrimSpace(url))
}

func (uc *SettingsUseCase) LoadAPIBaseURL(ctx context.Context) (string, error) {
	return uc.load(ctx, domain.SettingAPIBaseURL)
}

func (uc *SettingsUseCase) save(ctx context.Context, key, value string) error {
	if err := uc.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (uc *SettingsUseCase) load(ctx context.Context, key string) (string, error) {
	value, err := uc.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}

func loadSettings(ctx context.Context, store ports.SettingsStore) (domain.Settings, error) {
	key, err := store.Get(ctx, domain.SettingAPIKey)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load %s: %w", domain.SettingAPIKey, err)
	}
	baseURL, err := store.Get(ctx, domain.SettingAPIBaseURL)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load %s: %w", domain.SettingAPIBaseURL, err)
	}
	return domain.Settings{APIKey: key, APIBaseURL: baseURL}, nil
}
