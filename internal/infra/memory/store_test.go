package memory

import (
	"testing"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/infra/repotest"
)

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) app.Repository {
		return NewStore()
	})
}
