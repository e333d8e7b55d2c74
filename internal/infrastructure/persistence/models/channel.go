package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/integration"
)

// ChannelAccountModel is the persistence model for a shop's platform credentials
type ChannelAccountModel struct {
	BaseModel
	TenantID              uuid.UUID                `gorm:"type:uuid;not null;index"`
	Platform              integration.PlatformCode `gorm:"type:varchar(20);not null"`
	Market                string                   `gorm:"type:varchar(20)"`
	ShopID                string                   `gorm:"type:varchar(100);not null"`
	AppKey                string                   `gorm:"type:varchar(200)"`
	AppSecret             string                   `gorm:"type:varchar(500)"`
	WebhookSecret         string                   `gorm:"type:varchar(500)"`
	AccessToken           string                   `gorm:"type:text"`
	RefreshToken          string                   `gorm:"type:text"`
	TokenExpiresAt        *time.Time               `gorm:"index:idx_channel_accounts_expiry"`
	RateLimitPerMinute    int                      `gorm:"not null;default:60"`
	MaxRetries            int                      `gorm:"not null;default:3"`
	RequestTimeoutSeconds int                      `gorm:"not null;default:30"`
	SignatureUnverified   bool                     `gorm:"not null;default:false"`
	Sandbox               bool                     `gorm:"not null;default:false"`
	IsActive              bool                     `gorm:"not null;default:true"`
	LastRefreshAt         *time.Time
	LastRefreshError      string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ChannelAccountModel) TableName() string {
	return "channel_accounts"
}

// ToDomain converts the persistence model to a domain ChannelAccount
func (m *ChannelAccountModel) ToDomain() *integration.ChannelAccount {
	return &integration.ChannelAccount{
		ID:                    m.ID,
		TenantID:              m.TenantID,
		Platform:              m.Platform,
		Market:                m.Market,
		ShopID:                m.ShopID,
		AppKey:                m.AppKey,
		AppSecret:             m.AppSecret,
		WebhookSecret:         m.WebhookSecret,
		AccessToken:           m.AccessToken,
		RefreshToken:          m.RefreshToken,
		TokenExpiresAt:        m.TokenExpiresAt,
		RateLimitPerMinute:    m.RateLimitPerMinute,
		MaxRetries:            m.MaxRetries,
		RequestTimeoutSeconds: m.RequestTimeoutSeconds,
		SignatureUnverified:   m.SignatureUnverified,
		Sandbox:               m.Sandbox,
		IsActive:              m.IsActive,
		LastRefreshAt:         m.LastRefreshAt,
		LastRefreshError:      m.LastRefreshError,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

// ChannelAccountModelFromDomain creates a persistence model from a domain ChannelAccount
func ChannelAccountModelFromDomain(a *integration.ChannelAccount) *ChannelAccountModel {
	m := &ChannelAccountModel{
		TenantID:              a.TenantID,
		Platform:              a.Platform,
		Market:                a.Market,
		ShopID:                a.ShopID,
		AppKey:                a.AppKey,
		AppSecret:             a.AppSecret,
		WebhookSecret:         a.WebhookSecret,
		AccessToken:           a.AccessToken,
		RefreshToken:          a.RefreshToken,
		TokenExpiresAt:        a.TokenExpiresAt,
		RateLimitPerMinute:    a.RateLimitPerMinute,
		MaxRetries:            a.MaxRetries,
		RequestTimeoutSeconds: a.RequestTimeoutSeconds,
		SignatureUnverified:   a.SignatureUnverified,
		Sandbox:               a.Sandbox,
		IsActive:              a.IsActive,
		LastRefreshAt:         a.LastRefreshAt,
		LastRefreshError:      a.LastRefreshError,
	}
	m.fromDomain(a.ID, a.CreatedAt, a.UpdatedAt)
	return m
}
