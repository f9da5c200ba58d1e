package merge

import (
	"sort"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

// attachmentOwner is implemented by Task and Project, the two entity kinds
// that carry an attachments[] array.
type attachmentOwner interface {
	GetAttachments() []model.Attachment
}

// attachmentsOf looks up the attachments of an owning entity by id from an
// id-indexed map, returning nil when the owner is absent on that side (it
// only existed on the other side, or did not exist at all).
func attachmentsOf[T attachmentOwner](byID map[string]T, ownerID string) []model.Attachment {
	owner, ok := byID[ownerID]
	if !ok {
		return nil
	}
	return owner.GetAttachments()
}

// mergeAttachments resolves the attachments[] array of a winning entity by
// attachment id: tombstone wins, else later updatedAt; cloudKey, fileHash,
// and size are unioned preferring the non-empty value (ties go to the
// winner), per spec.md §4.1 step 5.
func mergeAttachments(local, remote []model.Attachment) []model.Attachment {
	localByID := attachmentIndex(local)
	remoteByID := attachmentIndex(remote)

	ids := make(map[string]struct{}, len(localByID)+len(remoteByID))
	for id := range localByID {
		ids[id] = struct{}{}
	}
	for id := range remoteByID {
		ids[id] = struct{}{}
	}

	sortedIDs := make([]string, 0, len(ids))
	for id := range ids {
		sortedIDs = append(sortedIDs, id)
	}
	sort.Strings(sortedIDs)

	result := make([]model.Attachment, 0, len(ids))
	for _, id := range sortedIDs {
		l, hasLocal := localByID[id]
		r, hasRemote := remoteByID[id]

		switch {
		case hasLocal && !hasRemote:
			result = append(result, l)
		case hasRemote && !hasLocal:
			result = append(result, r)
		default:
			result = append(result, resolveAttachment(l, r))
		}
	}
	return result
}

func resolveAttachment(l, r model.Attachment) model.Attachment {
	if l.DeletedAt != nil || r.DeletedAt != nil {
		return tombstoneAttachment(l, r)
	}

	winner := l
	if r.UpdatedAt > l.UpdatedAt {
		winner = r
	} else if r.UpdatedAt == l.UpdatedAt && r.CreatedAt > l.CreatedAt {
		winner = r
	}

	winner.CloudKey = preferNonEmpty(winner.CloudKey, l.CloudKey, r.CloudKey)
	winner.FileHash = preferNonEmpty(winner.FileHash, l.FileHash, r.FileHash)
	winner.Size = preferNonEmptySize(winner.Size, l.Size, r.Size)
	return winner
}

func tombstoneAttachment(l, r model.Attachment) model.Attachment {
	switch {
	case l.DeletedAt != nil && r.DeletedAt == nil:
		return l
	case r.DeletedAt != nil && l.DeletedAt == nil:
		return r
	default:
		winner := l
		if *r.DeletedAt < *l.DeletedAt {
			winner = r
		}
		earliest := *l.DeletedAt
		if *r.DeletedAt < earliest {
			earliest = *r.DeletedAt
		}
		winner.DeletedAt = &earliest
		return winner
	}
}

// preferNonEmpty returns the winner's value unless it's empty, in which
// case it falls back to whichever side has a non-empty value.
func preferNonEmpty(winnerVal, lVal, rVal string) string {
	if winnerVal != "" {
		return winnerVal
	}
	if lVal != "" {
		return lVal
	}
	return rVal
}

func preferNonEmptySize(winnerVal, lVal, rVal *int64) *int64 {
	if winnerVal != nil {
		return winnerVal
	}
	if lVal != nil {
		return lVal
	}
	return rVal
}

func attachmentIndex(items []model.Attachment) map[string]model.Attachment {
	m := make(map[string]model.Attachment, len(items))
	for _, it := range items {
		m[it.GetID()] = it
	}
	return m
}
