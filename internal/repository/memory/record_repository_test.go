package memory

import (
	"testing"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/repository/repotest"
)

func TestRecordRepository(t *testing.T) {
	repotest.RunRecordRepository(t, func(t *testing.T) record.Repository {
		return NewRecordRepository()
	})
}
