package otpstats

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func marchRange(t *testing.T) DateRange {
	t.Helper()
	r, err := NewDateRange(
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	return r
}

func TestRepository_Aggregate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Decodes Rows", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "2025-03-01"}, {Key: "verified", Value: int32(935)}, {Key: "unverified", Value: int32(65)}},
			bson.D{{Key: "_id", Value: "2025-03-02"}, {Key: "verified", Value: int32(0)}, {Key: "unverified", Value: int32(4)}},
		))

		repo := NewRepository(mt.Coll, time.UTC)
		stats, err := repo.Aggregate(context.Background(), marchRange(mt.T))
		if err != nil {
			mt.Fatalf("Aggregate returned error: %v", err)
		}
		if len(stats) != 2 {
			mt.Fatalf("Expected 2 rows, got %d", len(stats))
		}
		if stats[0].Date != "2025-03-01" || stats[0].Total != 1000 || stats[0].UnverifiedPct != 6.5 {
			mt.Errorf("Unexpected first row %+v", stats[0])
		}
		if stats[1].UnverifiedPct != 100 {
			mt.Errorf("Expected 100%% unverified, got %+v", stats[1])
		}
	})

	mt.Run("No Events", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		repo := NewRepository(mt.Coll, time.UTC)
		stats, err := repo.Aggregate(context.Background(), marchRange(mt.T))
		if err != nil {
			mt.Fatalf("Aggregate returned error: %v", err)
		}
		if len(stats) != 0 {
			mt.Errorf("Expected no rows, got %d", len(stats))
		}
	})

	mt.Run("Command Error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "unrecognized time zone identifier",
		}))

		repo := NewRepository(mt.Coll, time.UTC)
		if _, err := repo.Aggregate(context.Background(), marchRange(mt.T)); err == nil {
			mt.Error("Expected error from failed aggregate")
		}
	})
}

func TestRepository_FindUnverified(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Returns Documents", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "phone", Value: "+201000000001"}, {Key: "verified", Value: false}},
			bson.D{{Key: "phone", Value: "+201000000002"}},
		))

		repo := NewRepository(mt.Coll, time.UTC)
		docs, err := repo.FindUnverified(context.Background(), SingleDay(time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)))
		if err != nil {
			mt.Fatalf("FindUnverified returned error: %v", err)
		}
		if len(docs) != 2 {
			mt.Fatalf("Expected 2 documents, got %d", len(docs))
		}
		if docs[1][0].Value != "+201000000002" {
			mt.Errorf("Unexpected document %v", docs[1])
		}
	})
}

func TestAggregatePipeline(t *testing.T) {
	r := SingleDay(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	pipeline := aggregatePipeline(r, "Africa/Cairo")

	if len(pipeline) != 3 {
		t.Fatalf("Expected 3 stages, got %d", len(pipeline))
	}

	stages := []string{"$match", "$group", "$sort"}
	for i, stage := range stages {
		if pipeline[i][0].Key != stage {
			t.Errorf("Stage %d: expected %s, got %s", i, stage, pipeline[i][0].Key)
		}
	}

	match := pipeline[0][0].Value.(bson.D)[0].Value.(bson.D)
	from := match[0].Value.(time.Time)
	to := match[1].Value.(time.Time)
	if to.Sub(from) != 24*time.Hour {
		t.Errorf("Expected one day window, got %v", to.Sub(from))
	}

	group := pipeline[1][0].Value.(bson.D)
	dateExpr := group[0].Value.(bson.D)[0].Value.(bson.D)
	if dateExpr[2].Key != "timezone" || dateExpr[2].Value != "Africa/Cairo" {
		t.Errorf("Expected timezone Africa/Cairo, got %v", dateExpr[2])
	}
}

func TestUnverifiedFilter(t *testing.T) {
	filter := unverifiedFilter(SingleDay(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)))

	if filter[0].Key != "verified" {
		t.Fatalf("Expected verified clause first, got %s", filter[0].Key)
	}
	ne := filter[0].Value.(bson.D)[0]
	if ne.Key != "$ne" || ne.Value != true {
		t.Errorf("Expected {$ne: true}, got %v", ne)
	}
}
