package gradingRepository

const (
	queryCreateAnalysis = `
		INSERT INTO analyses (
			id,
			request_id,
			file_key,
			original_name,
			sha256,
			width_a,
			width_b,
			classification,
			insufficient_structure,
			created_at
		) VALUES (
			:id,
			:request_id,
			:file_key,
			:original_name,
			:sha256,
			:width_a,
			:width_b,
			:classification,
			:insufficient_structure,
			:created_at
		)
	`

	queryGetAnalysisByID = `
		SELECT
			id,
			request_id,
			file_key,
			original_name,
			sha256,
			width_a,
			width_b,
			classification,
			insufficient_structure,
			created_at
		FROM analyses
		WHERE id = :id
	`

	queryListRecentAnalyses = `
		SELECT
			id,
			request_id,
			file_key,
			original_name,
			sha256,
			width_a,
			width_b,
			classification,
			insufficient_structure,
			created_at
		FROM analyses
		ORDER BY created_at DESC, id DESC
		LIMIT :limit
	`
)
