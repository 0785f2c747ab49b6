package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Bridge command names, matching what the desktop front end invokes.
const (
	CommandAddMember       = "add_member"
	CommandGetAllMembers   = "get_all_members"
	CommandGetMemberByCNIC = "get_member_by_cnic"
	CommandUpdateMember    = "update_member"
	CommandDeleteMember    = "delete_member"
	CommandGreet           = "greet"
)

// Response is what crosses the process boundary. Errors are flattened to a
// message; Data is null for a lookup that found nothing.
type Response struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

type Bridge struct {
	members *MemberService
}

func NewBridge(members *MemberService) *Bridge {
	return &Bridge{members: members}
}

// Invoke runs one named command with JSON encoded arguments.
func (b *Bridge) Invoke(ctx context.Context, command string, rawArgs json.RawMessage) Response {
	data, err := b.dispatch(ctx, command, rawArgs)
	if err != nil {
		return Response{OK: false, Error: Flatten(err)}
	}
	return Response{OK: true, Data: data}
}

func (b *Bridge) dispatch(ctx context.Context, command string, rawArgs json.RawMessage) (any, error) {
	var args bridgeArgs
	if len(bytes.TrimSpace(rawArgs)) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, fmt.Errorf("%w: decode %s arguments: %v", ErrValidation, command, err)
		}
	}

	switch command {
	case CommandGreet:
		return Greet(args.Name), nil
	case CommandAddMember:
		in, err := args.memberInput(command)
		if err != nil {
			return nil, err
		}
		if _, err := b.members.Create(ctx, in); err != nil {
			return nil, err
		}
		return MessageMemberAdded, nil
	case CommandGetAllMembers:
		return b.members.List(ctx, ListMembersRequest{})
	case CommandGetMemberByCNIC:
		member, found, err := b.members.FindByCNIC(ctx, args.CNICNumber)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return member, nil
	case CommandUpdateMember:
		if args.ID == nil {
			return nil, fmt.Errorf("%w: %s requires id", ErrValidation, command)
		}
		in, err := args.memberInput(command)
		if err != nil {
			return nil, err
		}
		if err := b.members.Update(ctx, *args.ID, in); err != nil {
			return nil, err
		}
		return MessageMemberUpdated, nil
	case CommandDeleteMember:
		if args.ID == nil {
			return nil, fmt.Errorf("%w: %s requires id", ErrValidation, command)
		}
		if err := b.members.Delete(ctx, *args.ID); err != nil {
			return nil, err
		}
		return MessageMemberDeleted, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrValidation, command)
	}
}

type bridgeArgs struct {
	Name       string        `json:"name"`
	ID         *int64        `json:"id"`
	CNICNumber string        `json:"cnicNumber"`
	Member     *bridgeMember `json:"member"`
}

func (a bridgeArgs) memberInput(command string) (MemberInput, error) {
	if a.Member == nil {
		return MemberInput{}, fmt.Errorf("%w: %s requires member", ErrValidation, command)
	}
	return a.Member.MemberInput, nil
}

// bridgeMember accepts images either as base64 strings or as arrays of byte
// values, which is how the desktop front end serializes them.
type bridgeMember struct {
	MemberInput
}

func (m *bridgeMember) UnmarshalJSON(data []byte) error {
	type plain struct {
		Name              string          `json:"name"`
		FatherHusbandName string          `json:"father_husband_name"`
		Gender            string          `json:"gender"`
		CNICNumber        string          `json:"cnic_number"`
		DateOfBirth       string          `json:"date_of_birth"`
		DateOfIssue       string          `json:"date_of_issue"`
		DateOfExpiry      string          `json:"date_of_expiry"`
		CNICFrontImage    json.RawMessage `json:"cnic_front_image"`
		CNICBackImage     json.RawMessage `json:"cnic_back_image"`
	}
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	front, err := decodeImage(raw.CNICFrontImage)
	if err != nil {
		return fmt.Errorf("cnic_front_image: %w", err)
	}
	back, err := decodeImage(raw.CNICBackImage)
	if err != nil {
		return fmt.Errorf("cnic_back_image: %w", err)
	}

	m.MemberInput = MemberInput{
		Name:              raw.Name,
		FatherHusbandName: raw.FatherHusbandName,
		Gender:            raw.Gender,
		CNICNumber:        raw.CNICNumber,
		DateOfBirth:       raw.DateOfBirth,
		DateOfIssue:       raw.DateOfIssue,
		DateOfExpiry:      raw.DateOfExpiry,
		CNICFrontImage:    front,
		CNICBackImage:     back,
	}
	return nil
}

func decodeImage(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(encoded)
	case '[':
		var values []int
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, err
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("byte %d out of range: %d", i, v)
			}
			out[i] = byte(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected base64 string or byte array")
	}
}
