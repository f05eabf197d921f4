package models

import (
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model  `json:"-"`
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name"`
	Email       string `json:"email" gorm:"uniqueIndex"` // Ensure email is unique across all users
	Phone       string `json:"phone,omitempty"`
	Password    string `json:"-"`                                         // Store hashed password, ignore for JSON serialization
	FirebaseUID string `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // Link to Firebase User UID
	PushToken   string `json:"-"`                                         // FCM registration token; empty when the user has no registered device
	Locale      string `json:"locale"`                                    // BCP 47 tag used to localize alert messages
}

type CreateUserRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,e164"`
	Locale      string `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
	FirebaseUID string `json:"firebase_uid" validate:"required"` // Firebase UID will be provided by the client after Firebase Auth
}

type CreateLocalUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,e164"`
	Locale   string `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
	Password string `json:"password" validate:"required,min=8"`
}

type UpdateUserRequest struct {
	Name   string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Phone  string `json:"phone,omitempty" validate:"omitempty,e164"`
	Locale string `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
}

// UpdatePushTokenRequest defines the request body for registering the FCM
// token the alert dispatcher delivers to
type UpdatePushTokenRequest struct {
	PushToken string `json:"push_token" validate:"required"`
	Locale    string `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
