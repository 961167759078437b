package mongostore

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unkn0wn-root/contentcache"
)

// document mirrors the Mongoose schema used by the API service.
type document struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Summary   string             `bson:"summary"`
	Body      string             `bson:"body"`
	Quiz      []quizDoc          `bson:"quiz,omitempty"`
	Notes     string             `bson:"notes,omitempty"`
	Media     []media            `bson:"media,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type quizDoc struct {
	Question string   `bson:"question"`
	Options  []string `bson:"options"`
	Answer   int      `bson:"answer"`
}

type media struct {
	Kind string `bson:"kind"`
	URL  string `bson:"url"`
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q is not an ObjectID", contentcache.ErrInvalidID, id)
	}
	return oid, nil
}

func byIDFilter(id string) (bson.M, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return bson.M{"_id": oid}, nil
}

// createdBetweenFilter is inclusive on both ends.
func createdBetweenFilter(from, to time.Time) bson.M {
	return bson.M{"createdAt": bson.M{"$gte": from.UTC(), "$lte": to.UTC()}}
}

func pageOptions(skip, limit int) *options.FindOptions {
	return options.Find().
		SetSort(newestFirst).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
}

func updateDoc(d document) bson.M {
	return bson.M{"$set": bson.M{
		"title":     d.Title,
		"summary":   d.Summary,
		"body":      d.Body,
		"quiz":      d.Quiz,
		"notes":     d.Notes,
		"media":     d.Media,
		"updatedAt": d.UpdatedAt,
	}}
}

func mediaDoc(m contentcache.MediaRef) media { return media{Kind: m.Kind, URL: m.URL} }

func (d document) item() contentcache.ContentItem {
	it := contentcache.ContentItem{
		NativeID:  d.ID.Hex(),
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Summary:   d.Summary,
		Body:      d.Body,
		Notes:     d.Notes,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, q := range d.Quiz {
		it.Quiz = append(it.Quiz, contentcache.QuizQuestion{Question: q.Question, Options: q.Options, Answer: q.Answer})
	}
	for _, m := range d.Media {
		it.Media = append(it.Media, contentcache.MediaRef{Kind: m.Kind, URL: m.URL})
	}
	return it
}

func fromItem(it contentcache.ContentItem) (document, error) {
	d := document{
		Title:     it.Title,
		Summary:   it.Summary,
		Body:      it.Body,
		Notes:     it.Notes,
		CreatedAt: it.CreatedAt.UTC(),
		UpdatedAt: it.UpdatedAt.UTC(),
	}
	if it.NativeID != "" {
		oid, err := parseID(it.NativeID)
		if err != nil {
			return document{}, err
		}
		d.ID = oid
	}
	for _, q := range it.Quiz {
		d.Quiz = append(d.Quiz, quizDoc{Question: q.Question, Options: q.Options, Answer: q.Answer})
	}
	for _, m := range it.Media {
		d.Media = append(d.Media, mediaDoc(m))
	}
	return d, nil
}
