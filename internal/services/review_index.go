package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"storefront_back_end/internal/models"
)

// ReviewSink reçoit les commandes qu'un opérateur doit vérifier
type ReviewSink interface {
	Flag(ctx context.Context, order models.Order) error
}

// reviewDocument est le document indexé pour le tableau de bord opérateur
type reviewDocument struct {
	models.Order
	Reasons []string `json:"reasons"`
}

// ReviewReasons liste les raisons pour lesquelles la commande est signalée
func ReviewReasons(order models.Order) []string {
	var reasons []string
	if order.Status == models.StatusNeedsReview {
		reasons = append(reasons, string(models.StatusNeedsReview))
	}
	if order.MetadataParseError {
		reasons = append(reasons, "metadataParseError")
	}
	if order.InventoryDeductError {
		reasons = append(reasons, "inventoryDeductError")
	}
	if order.InventoryRestoreError {
		reasons = append(reasons, "inventoryRestoreError")
	}
	return reasons
}

// ElasticReviewSink indexe les commandes signalées dans Elasticsearch
type ElasticReviewSink struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticClient crée le client et vérifie la connexion
func NewElasticClient(url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, err
	}

	res, err := client.Info()
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch: %s", res.String())
	}
	return client, nil
}

func NewElasticReviewSink(client *elasticsearch.Client, index string) *ElasticReviewSink {
	return &ElasticReviewSink{client: client, index: index}
}

// Flag indexe la commande sous son id ; une réindexation remplace le document
func (s *ElasticReviewSink) Flag(ctx context.Context, order models.Order) error {
	data, err := json.Marshal(reviewDocument{Order: order, Reasons: ReviewReasons(order)})
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: order.ID,
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("envoi Elastic: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elastic a refusé la commande %s: %s", order.ID, res.String())
	}
	log.Printf("🔎 Commande %s indexée pour revue", order.ID)
	return nil
}
