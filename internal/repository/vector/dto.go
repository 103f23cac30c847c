package vector

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
)

const (
	fieldPointID = "point_id"
	metaDim      = "dimensions"
	metaMetric   = "metric"
)

// payloadFields are returned by KNN queries; the vector blob is never read back.
var payloadFields = []string{
	content.FieldContentID,
	content.FieldOwnerID,
	content.FieldTitle,
	content.FieldSummary,
	content.FieldTags,
}

func indexMeta(cfg Config) map[string]string {
	return map[string]string{
		metaDim:    strconv.Itoa(cfg.Dimensions),
		metaMetric: string(db.DistanceCosine),
	}
}

// pointToHash converts a content Vector to HSET fields.
func pointToHash(v content.Vector) (map[string]string, error) {
	tags := v.Tags()
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return map[string]string{
		fieldPointID:           v.PointID(),
		content.FieldContentID: v.ContentID(),
		content.FieldOwnerID:   content.OwnerTag(v.OwnerID()),
		content.FieldIsPublic:  strconv.FormatBool(v.IsPublic()),
		content.FieldTitle:     v.Title(),
		content.FieldSummary:   v.Summary(),
		content.FieldTags:      string(tagsJSON),
		content.FieldVector:    db.EncodeVector(v.Vector()),
	}, nil
}

// payloadFromFields hydrates the stored payload of a point. is_public is
// optional because KNN queries do not return it.
func payloadFromFields(m map[string]string) (content.Payload, error) {
	contentID := m[content.FieldContentID]
	if contentID == "" {
		return content.Payload{}, fmt.Errorf("missing %s", content.FieldContentID)
	}
	ownerID, err := strconv.ParseInt(m[content.FieldOwnerID], 10, 64)
	if err != nil {
		return content.Payload{}, fmt.Errorf("invalid owner_id: %w", err)
	}

	var isPublic bool
	if raw, ok := m[content.FieldIsPublic]; ok {
		if isPublic, err = strconv.ParseBool(raw); err != nil {
			return content.Payload{}, fmt.Errorf("invalid is_public: %w", err)
		}
	}

	var tags []string
	if raw := m[content.FieldTags]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return content.Payload{}, fmt.Errorf("invalid tags: %w", err)
		}
	}

	return content.Payload{
		ContentID: contentID,
		OwnerID:   ownerID,
		IsPublic:  isPublic,
		Title:     m[content.FieldTitle],
		Summary:   m[content.FieldSummary],
		Tags:      tags,
	}, nil
}

// candidateFromFields hydrates a search hit.
func candidateFromFields(m map[string]string, score float64) (candidate.Candidate, error) {
	p, err := payloadFromFields(m)
	if err != nil {
		return candidate.Candidate{}, err
	}
	return candidate.Candidate{
		ContentID:  p.ContentID,
		OwnerID:    p.OwnerID,
		Title:      p.Title,
		Summary:    p.Summary,
		Tags:       p.Tags,
		Similarity: score,
	}, nil
}
