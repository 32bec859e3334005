package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dormdesk/internal/models"
	"dormdesk/internal/store"
)

// functionEnvelope is the response body every identity function returns.
type functionEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// FunctionProvisioner manages login identities through the hosted
// create_user and manage_user functions.
type FunctionProvisioner struct {
	functions store.Functions
	createID  string
	manageID  string
}

func NewFunctionProvisioner(functions store.Functions, createFunctionID, manageFunctionID string) *FunctionProvisioner {
	return &FunctionProvisioner{functions: functions, createID: createFunctionID, manageID: manageFunctionID}
}

func (p *FunctionProvisioner) CreateIdentity(ctx context.Context, req models.IdentityRequest) (string, error) {
	env, err := p.call(ctx, p.createID, req)
	if err != nil {
		return "", err
	}
	if env.UserID == "" {
		return "", fmt.Errorf("%w: create_user returned no user id", ErrFunctionFailed)
	}
	return env.UserID, nil
}

func (p *FunctionProvisioner) UpdateIdentity(ctx context.Context, authID string, req models.IdentityRequest) error {
	payload := struct {
		Action string `json:"action"`
		UserID string `json:"userId"`
		models.IdentityRequest
	}{Action: "update", UserID: authID, IdentityRequest: req}

	_, err := p.call(ctx, p.manageID, payload)
	return err
}

func (p *FunctionProvisioner) DeleteIdentity(ctx context.Context, authID string) error {
	payload := map[string]string{"action": "delete", "userId": authID}
	_, err := p.call(ctx, p.manageID, payload)
	return err
}

func (p *FunctionProvisioner) call(ctx context.Context, functionID string, payload any) (*functionEnvelope, error) {
	exec, err := p.functions.Execute(ctx, functionID, payload)
	if err != nil {
		return nil, err
	}
	if exec.Status == "failed" {
		return nil, fmt.Errorf("%w: %s execution %s failed", ErrFunctionFailed, functionID, exec.ID)
	}

	env, err := parseEnvelope(exec.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFunctionFailed, functionID, err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "function reported failure"
		}
		return nil, fmt.Errorf("%w: %s", ErrFunctionFailed, msg)
	}
	return env, nil
}

// parseEnvelope decodes the response body, which some function runtimes
// return as a JSON string wrapping the actual object.
func parseEnvelope(body string) (*functionEnvelope, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("empty response body")
	}
	if strings.HasPrefix(body, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(body), &inner); err != nil {
			return nil, fmt.Errorf("decode response body: %w", err)
		}
		body = inner
	}

	var env functionEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return &env, nil
}
