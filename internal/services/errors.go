package services

import (
	"errors"

	pkgerrors "github.com/yungbote/studyforge-backend/internal/pkg/errors"
)

func isNotFound(err error) bool { return errors.Is(err, pkgerrors.ErrNotFound) }
