package credentials_test

import (
	"deploy-chat/internal/credentials"
	"deploy-chat/internal/usecase"
)

var (
	_ usecase.CredentialProvider = credentials.Static("")
	_ usecase.CredentialProvider = (*credentials.ParamStore)(nil)
)
