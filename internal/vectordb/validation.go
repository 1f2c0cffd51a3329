package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DimensionMismatchError is returned when embedding dimensions don't match collection dimensions
type DimensionMismatchError struct {
	Collection        string
	ExpectedDimension int
	ReceivedDimension int
}

func (e DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch for collection %s: expected %d, got %d; check the embedding model or recreate the collection",
		e.Collection, e.ExpectedDimension, e.ReceivedDimension)
}

// CollectionInfo holds basic information about a Qdrant collection
type CollectionInfo struct {
	Name        string
	VectorSize  int
	Distance    string
	PointsCount int64
}

// ValidateEmbeddingDimensions checks each collection against ExpectedEmbeddingDim. Collections
// that cannot be inspected are logged and skipped.
func (c *Client) ValidateEmbeddingDimensions(ctx context.Context, collections ...string) error {
	expected := c.cfg.ExpectedEmbeddingDim
	if expected <= 0 {
		return nil
	}
	for _, collection := range collections {
		info, err := c.CollectionInfo(ctx, collection)
		if err != nil {
			c.log.Warn("Failed to get collection info during validation",
				zap.String("collection", collection),
				zap.Error(err))
			continue
		}
		if info.VectorSize != expected {
			return DimensionMismatchError{Collection: collection, ExpectedDimension: expected, ReceivedDimension: info.VectorSize}
		}
		c.log.Info("Collection dimension validated",
			zap.String("collection", collection),
			zap.Int("dimension", info.VectorSize))
	}
	return nil
}

// CollectionInfo retrieves collection information from Qdrant
func (c *Client) CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", c.base, collection), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("collection info", resp)
	}

	var result struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int64  `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:        collection,
		VectorSize:  result.Result.Config.Params.Vectors.Size,
		Distance:    result.Result.Config.Params.Vectors.Distance,
		PointsCount: result.Result.PointsCount,
	}, nil
}
