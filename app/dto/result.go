package dto

import "github.com/anotherme-social/identity-service/app/entity"

type RegisterResult struct {
	User *entity.User
}

type LoginResult struct {
	AccessToken string
	ExpiresIn   int64
}
