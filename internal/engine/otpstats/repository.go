package otpstats

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventStore is the read side of the OTP event collection.
type EventStore interface {
	Aggregate(ctx context.Context, r DateRange) ([]DailyAggregate, error)
	FindUnverified(ctx context.Context, r DateRange) ([]bson.D, error)
}

type Repository struct {
	coll     *mongo.Collection
	timezone string
}

// NewRepository cuts days in loc, which must be a named IANA zone.
func NewRepository(coll *mongo.Collection, loc *time.Location) *Repository {
	return &Repository{coll: coll, timezone: loc.String()}
}

type aggregateRow struct {
	Date       string `bson:"_id"`
	Verified   int    `bson:"verified"`
	Unverified int    `bson:"unverified"`
}

// Aggregate returns one row per day with at least one event, ascending by
// date.
func (r *Repository) Aggregate(ctx context.Context, rng DateRange) ([]DailyAggregate, error) {
	cursor, err := r.coll.Aggregate(ctx, aggregatePipeline(rng, r.timezone))
	if err != nil {
		return nil, fmt.Errorf("aggregate otp events %s: %w", rng, err)
	}
	defer cursor.Close(ctx)

	var rows []aggregateRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode otp aggregates %s: %w", rng, err)
	}

	stats := make([]DailyAggregate, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, NewDailyAggregate(row.Date, row.Verified, row.Unverified))
	}
	return stats, nil
}

// FindUnverified returns the full documents of unverified OTPs created in
// the range, oldest first. A missing verified field counts as unverified.
func (r *Repository) FindUnverified(ctx context.Context, rng DateRange) ([]bson.D, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, unverifiedFilter(rng), opts)
	if err != nil {
		return nil, fmt.Errorf("find unverified otps %s: %w", rng, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode unverified otps %s: %w", rng, err)
	}
	return docs, nil
}

func createdIn(rng DateRange) bson.D {
	from, to := rng.Bounds()
	return bson.D{{Key: "$gte", Value: from}, {Key: "$lt", Value: to}}
}

func aggregatePipeline(rng DateRange, timezone string) mongo.Pipeline {
	isVerified := bson.D{{Key: "$eq", Value: bson.A{"$verified", true}}}

	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "createdAt", Value: createdIn(rng)}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$createdAt"},
				{Key: "timezone", Value: timezone},
			}}}},
			{Key: "verified", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{isVerified, 1, 0}},
			}}}},
			{Key: "unverified", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{isVerified, 0, 1}},
			}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func unverifiedFilter(rng DateRange) bson.D {
	return bson.D{
		{Key: "verified", Value: bson.D{{Key: "$ne", Value: true}}},
		{Key: "createdAt", Value: createdIn(rng)},
	}
}
