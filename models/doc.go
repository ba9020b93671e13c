// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON live in requests.go. Bodies are decoded
strictly, so every field a client may send appears on a request type:

  - RegisterRequest, LoginRequest, ChangePasswordRequest
  - CreateUserRequest, UpdateRoleRequest
  - CommitteeRequest, AssignChairRequest, AddCommitteeCountriesRequest
  - CountryRequest, CreateDelegateRequest
  - AssignCommitteeRequest, AssignCountryRequest, AllocateDelegateRequest
  - CreateBlockRequest, AddBlockMemberRequest
  - SubmitDocumentRequest, ReviewDocumentRequest, CastVoteRequest
  - CreateScoreRequest, RecordAttendanceRequest, EventRequest

# Response Types

  - AuthResponse: token, user
  - CreatedResponse, MessageResponse, ErrorResponse
  - CommitteeWithCountries, AllocationResponse
  - DocumentVotesResponse, PublishResponse
  - AwardsResponse, RollCallResponse, StatsResponse

# Domain Types

  - User, Committee, Country, CommitteeCountry, Delegate
  - Block, BlockMember
  - Document, Vote, Tally
  - Score, AwardStanding
  - AttendanceRecord, AttendanceSummary
  - Event

# Constants

Roles:

	RoleAdmin, RoleChair, RoleDelegate

Document kinds and statuses:

	KindPositionPaper, KindDraftResolution, KindAmendment
	DocSubmitted → DocApproved | DocRejected
	DocApproved  → DocPublished | DocFailed

Vote positions:

	VoteFor, VoteAgainst, VoteAbstain

Attendance:

	AttendancePresent, AttendancePresentAndVoting, AttendanceLate, AttendanceAbsent
*/
package models
