package engine

import (
	"context"
	"errors"
	"strconv"

	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/logger"
	"casalinger_engine/pkg"
)

const viewingPromptMessage = "To book a viewing, could you provide your information in this order: " +
	"full name, email address, phone number, preferred date for inspection, preferred time for inspection, " +
	"alternative date, alternative time, and special requirements?"

const applicationPromptMessage = "To submit a property application, please provide your information in this exact format:\n\n" +
	"**Full Name** (e.g., John Doe), **Email Address** (e.g., john.doe@gmail.com), **Phone Number** (e.g., 08012345678), " +
	"**Monthly Income** (e.g., 500000 - just the number, no commas or currency), **Employment Status** (e.g., employed/unemployed/self-employed), " +
	"**Move-in Date** (e.g., 30-07-2025), **Lease Duration** in months (e.g., 12)\n\n" +
	"**Example**:\nJohn Doe, johndoe@gmail.com, 08012345678, 500000, employed, 30-07-2025, 12"

const propertyNotFoundMessage = "I couldn't find the property you referenced. Could you provide more details or check the name?"

// handleViewingFlow drives the viewing booking workflow: resolve the
// property, collect the form, submit. Mid-fill requests for a different
// property reset the flow and start over.
func (e *Engine) handleViewingFlow(ctx context.Context, state *conversation.State, message string) string {
	if !state.AwaitingViewingInfo {
		state.ResetViewingFlow()
		return e.startViewingFlow(ctx, state, message)
	}

	if !e.classifyProvidingInfo(ctx, message, state.ListingID, bookingInfoPatterns, "booking") {
		logger.Info().Str("user_id", state.CurrentUserID).Msg("new booking request mid-flow, resetting")
		state.ResetViewingFlow()
		return e.startViewingFlow(ctx, state, message)
	}

	if state.ViewingData == nil {
		state.ViewingData = map[string]string{}
	}
	for field, value := range ParseViewingInfo(message) {
		state.ViewingData[field] = value
	}
	state.AwaitingViewingInfo = false

	if missing := missingFields(state.ViewingData, requiredViewingFields); len(missing) > 0 {
		state.AwaitingViewingInfo = true
		return viewingPromptMessage
	}

	req := pkg.ViewingRequest{
		UserID:       state.CurrentUserID,
		ListingID:    state.ListingID,
		AgentEmail:   state.AgentEmail,
		ViewerName:   state.ViewingData["viewer_name"],
		ViewerEmail:  state.ViewingData["viewer_email"],
		ViewerPhone:  state.ViewingData["viewer_phone"],
		Date:         state.ViewingData["preferred_date"],
		Time:         state.ViewingData["preferred_time"],
		AltDate:      state.ViewingData["alternative_date"],
		AltTime:      state.ViewingData["alternative_time"],
		Requirements: state.ViewingData["special_requirements"],
	}

	result, err := e.gateway.SubmitViewing(ctx, req)
	if err != nil {
		// The form is preserved so the user can adjust and resubmit.
		state.AwaitingViewingInfo = true
		if errors.Is(err, pkg.ErrConflict) {
			return "That viewing slot is already requested for this property. Could you pick a different date or time?"
		}
		return "Failed to book viewing: " + err.Error()
	}

	state.ResetViewingFlow()
	return result.Message
}

// startViewingFlow resolves the referenced property and, on success,
// asks for the form.
func (e *Engine) startViewingFlow(ctx context.Context, state *conversation.State, message string) string {
	rewritten := e.rewriteFollowUp(ctx, state, message)
	rows := e.lookupRows(ctx, rewritten)
	if len(rows) == 0 {
		return propertyNotFoundMessage
	}

	state.ListingID = rowString(rows[0], "id")
	state.AgentEmail = rowString(rows[0], "email")
	state.ViewingData = map[string]string{}
	state.AwaitingViewingInfo = true
	logger.Info().Str("listing_id", state.ListingID).Str("agent_email", state.AgentEmail).Msg("viewing flow started")
	return viewingPromptMessage
}

// handleApplicationFlow mirrors the viewing flow for rental
// applications. All seven fields are required.
func (e *Engine) handleApplicationFlow(ctx context.Context, state *conversation.State, message string) string {
	if !state.AwaitingApplicationInfo {
		state.ResetApplicationFlow()
		return e.startApplicationFlow(ctx, state, message)
	}

	if !e.classifyProvidingInfo(ctx, message, state.ListingID, applicationInfoPatterns, "application") {
		logger.Info().Str("user_id", state.CurrentUserID).Msg("new application request mid-flow, resetting")
		state.ResetApplicationFlow()
		return e.startApplicationFlow(ctx, state, message)
	}

	if state.ApplicationData == nil {
		state.ApplicationData = map[string]string{}
	}
	for field, value := range ParseApplicationInfo(message) {
		state.ApplicationData[field] = value
	}
	state.AwaitingApplicationInfo = false

	if missing := missingFields(state.ApplicationData, applicationFields); len(missing) > 0 {
		state.AwaitingApplicationInfo = true
		return applicationPromptMessage
	}

	income, _ := strconv.ParseFloat(state.ApplicationData["monthly_income"], 64)
	months, _ := strconv.Atoi(state.ApplicationData["lease_duration"])
	req := pkg.ApplicationRequest{
		UserID:        state.CurrentUserID,
		ListingID:     state.ListingID,
		AgentEmail:    state.AgentEmail,
		Name:          state.ApplicationData["applicant_name"],
		Email:         state.ApplicationData["applicant_email"],
		Phone:         state.ApplicationData["applicant_phone"],
		MonthlyIncome: income,
		Employment:    state.ApplicationData["employment_status"],
		MoveInDate:    state.ApplicationData["move_in_date"],
		LeaseMonths:   months,
	}

	result, err := e.gateway.SubmitApplication(ctx, req)
	if err != nil {
		state.AwaitingApplicationInfo = true
		if errors.Is(err, pkg.ErrConflict) {
			return "You already have a pending application for this property. The agent will be in touch soon."
		}
		return "Failed to submit application: " + err.Error()
	}

	state.ResetApplicationFlow()
	return result.Message
}

func (e *Engine) startApplicationFlow(ctx context.Context, state *conversation.State, message string) string {
	rewritten := e.rewriteFollowUp(ctx, state, message)
	rows := e.lookupRows(ctx, rewritten)
	if len(rows) == 0 {
		return propertyNotFoundMessage
	}

	state.ListingID = rowString(rows[0], "id")
	state.AgentEmail = rowString(rows[0], "email")
	state.ApplicationData = map[string]string{}
	state.AwaitingApplicationInfo = true
	logger.Info().Str("listing_id", state.ListingID).Str("agent_email", state.AgentEmail).Msg("application flow started")
	return applicationPromptMessage
}

// rowString reads a column as a string, tolerating numeric IDs.
func rowString(row map[string]any, column string) string {
	value, ok := row[column]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
