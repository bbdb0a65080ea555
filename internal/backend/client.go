/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend is the typed HTTP client for the local trainer service.
// The desktop app only talks to the service through this boundary; training
// and inference themselves run server-side.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client talks to one trainer service instance.
type Client struct {
	BaseURL string
	Token   string // bearer token, empty for unauthenticated local services
	client  *http.Client
}

// NewClient creates a client for the service at baseURL. A trailing slash is
// normalized away. timeout <= 0 selects a 30s default; training uploads can
// be slow on large image sets.
func NewClient(baseURL, token string, timeout time.Duration, tlsInsecure bool) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport
	if tlsInsecure {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("trainer %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, dest)
}

// StatusMessage is the generic {status, message} envelope most trainer
// endpoints answer with.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health checks that the service is reachable.
func (c *Client) Health(ctx context.Context) error {
	var m struct {
		Message string `json:"message"`
	}
	return c.getJSON(ctx, "/", &m)
}

// CheckAccelerator asks whether GPU acceleration is available on the host
// running the trainer.
func (c *Client) CheckAccelerator(ctx context.Context) (StatusMessage, error) {
	var m StatusMessage
	err := c.getJSON(ctx, "/check-mps", &m)
	return m, err
}

// TrainStatus is the polled state of the current (or last) training job.
type TrainStatus struct {
	Status   string  `json:"status"` // idle, initializing, loading_models, training, complete, error
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// TrainingStatus polls the trainer for job progress.
func (c *Client) TrainingStatus(ctx context.Context) (TrainStatus, error) {
	var st TrainStatus
	err := c.getJSON(ctx, "/train/status", &st)
	return st, err
}

// ImageUpload is one training image attached to a job request.
type ImageUpload struct {
	Name string
	Data []byte
}

// TrainRequest carries the parameters for one fine-tuning job.
type TrainRequest struct {
	Images         []ImageUpload
	BaseModel      string
	InstancePrompt string
	Steps          int
	LearningRate   float64
	Resolution     int
	TrainBatchSize int
}

// StartTraining submits a job as multipart form data. The service answers
// with status "error" when a job is already running; that answer is returned
// as-is rather than as a Go error so callers can surface the message.
func (c *Client) StartTraining(ctx context.Context, req TrainRequest) (StatusMessage, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, img := range req.Images {
		fw, err := mw.CreateFormFile("images", img.Name)
		if err != nil {
			return StatusMessage{}, fmt.Errorf("build upload: %w", err)
		}
		if _, err := fw.Write(img.Data); err != nil {
			return StatusMessage{}, fmt.Errorf("build upload: %w", err)
		}
	}
	fields := map[string]string{
		"baseModel":      req.BaseModel,
		"instancePrompt": req.InstancePrompt,
		"steps":          strconv.Itoa(req.Steps),
		"learningRate":   strconv.FormatFloat(req.LearningRate, 'g', -1, 64),
		"resolution":     strconv.Itoa(req.Resolution),
		"trainBatchSize": strconv.Itoa(req.TrainBatchSize),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return StatusMessage{}, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return StatusMessage{}, fmt.Errorf("build upload: %w", err)
	}

	var m StatusMessage
	err := c.do(ctx, http.MethodPost, "/train", mw.FormDataContentType(), &body, &m)
	return m, err
}

// TerminateTraining signals the running job to stop at the next safe point.
func (c *Client) TerminateTraining(ctx context.Context) (StatusMessage, error) {
	var m StatusMessage
	err := c.do(ctx, http.MethodPost, "/train/terminate", "", nil, &m)
	return m, err
}

// GenerateRequest asks a trained model for an image.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Steps  int    `json:"steps,omitempty"`
}

// Generate starts an inference job; progress is polled via GenerateStatus.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (StatusMessage, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return StatusMessage{}, err
	}
	var m StatusMessage
	err = c.do(ctx, http.MethodPost, "/generate", "application/json", bytes.NewReader(data), &m)
	return m, err
}

// GenerateStatus is the polled state of the current inference job. Image
// carries the result as base64 PNG once Status is "complete".
type GenerateStatus struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Image    string  `json:"image,omitempty"`
}

// GenerationStatus polls the trainer for inference progress.
func (c *Client) GenerationStatus(ctx context.Context) (GenerateStatus, error) {
	var st GenerateStatus
	err := c.getJSON(ctx, "/generate/status", &st)
	return st, err
}

// Model is one trained model known to the service.
type Model struct {
	Name      string    `json:"name"`
	Prompt    string    `json:"prompt,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
}

// ListModels returns the trained models available on the service.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var list []Model
	if err := c.getJSON(ctx, "/models", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// RenameModel renames a trained model.
func (c *Client) RenameModel(ctx context.Context, name, newName string) error {
	payload, err := json.Marshal(map[string]string{"new_name": newName})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/models/"+url.PathEscape(name)+"/rename", "application/json", bytes.NewReader(payload), nil)
}

// DeleteModel removes a trained model from the service.
func (c *Client) DeleteModel(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/models/"+url.PathEscape(name), "", nil, nil)
}

// DownloadModel streams a model archive to destPath.
func (c *Client) DownloadModel(ctx context.Context, name, destPath string) error {
	u := c.BaseURL + "/models/" + url.PathEscape(name) + "/download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trainer GET %s: %s", u, resp.Status)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("download model: %w", err)
	}
	return f.Close()
}
