package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pestguard-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
)

func TestListActiveHidesRetiredServices(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.MustCreateService(t, conn, "Rodent control", true)
	dbtest.MustCreateService(t, conn, "Ant treatment", true)
	dbtest.MustCreateService(t, conn, "Legacy fogging", false)

	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	got, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Ant treatment", got[0].Title)
	require.Equal(t, "Rodent control", got[1].Title)
}

func TestResolveActive(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	active := dbtest.MustCreateService(t, conn, "Bed bugs", true)
	retired := dbtest.MustCreateService(t, conn, "Old", false)
	ctx := context.Background()

	got, err := ResolveActive(ctx, repo, active.PublicID)
	require.NoError(t, err)
	require.Equal(t, active.ID, got.ID)

	_, err = ResolveActive(ctx, repo, retired.PublicID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = ResolveActive(ctx, repo, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
