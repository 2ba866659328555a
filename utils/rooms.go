package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"venturelink/engine"
)

// RoomClient provisions video rooms with the third-party provider's REST
// API. It implements engine.RoomProvisioner.
type RoomClient struct {
	apiURL string
	apiKey string
	client *fasthttp.Client
	logger *log.Logger
}

func NewRoomClient(apiURL, apiKey string, logger *log.Logger) *RoomClient {
	return &RoomClient{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &fasthttp.Client{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type createRoomRequest struct {
	Name       string `json:"name"`
	Properties struct {
		Exp int64 `json:"exp"`
	} `json:"properties"`
}

type createRoomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CreateRoom requests a room that expires when the meeting ends. The caller
// treats any failure here as fatal to the whole scheduling operation.
func (rc *RoomClient) CreateRoom(ctx context.Context, expiry time.Time) (engine.Room, error) {
	payload := createRoomRequest{Name: "vl-" + uuid.NewString()}
	payload.Properties.Exp = expiry.Unix()

	body, err := json.Marshal(payload)
	if err != nil {
		return engine.Room{}, fmt.Errorf("encode room request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rc.apiURL + "/rooms")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+rc.apiKey)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(15 * time.Second)
	}
	if err := rc.client.DoDeadline(req, resp, deadline); err != nil {
		return engine.Room{}, fmt.Errorf("room provider unreachable: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK && resp.StatusCode() != fasthttp.StatusCreated {
		rc.logger.Printf("room provider returned %d: %s", resp.StatusCode(), resp.Body())
		return engine.Room{}, fmt.Errorf("room provider returned status %d", resp.StatusCode())
	}

	var created createRoomResponse
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return engine.Room{}, fmt.Errorf("decode room response: %w", err)
	}
	if created.URL == "" {
		return engine.Room{}, fmt.Errorf("room provider returned no url")
	}

	return engine.Room{Name: created.Name, URL: created.URL}, nil
}
